package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingService(err error) (*smtpEmailService, *captured) {
	c := &captured{}
	return &smtpEmailService{
		smtpAddr: "mail:25",
		smtpFrom: "payments@example.com",
		opsInbox: "ops@example.com",
		send: func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
			return err
		},
	}, c
}

func TestSendPaymentOutcome(t *testing.T) {
	t.Parallel()

	svc, got := newCapturingService(nil)
	err := svc.SendPaymentOutcome(context.Background(), PaymentOutcomeData{
		MerchantOrderID: "ORD1",
		PaymentState:    "COMPLETED",
		Source:          "live_status",
		CustomerEmail:   "buyer@example.com",
		SettledAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Equal(t, "mail:25", got.addr)
	require.Equal(t, []string{"ops@example.com", "buyer@example.com"}, got.to)
	require.Contains(t, got.msg, "Subject: Payment COMPLETED: order ORD1\r\n")
	require.Contains(t, got.msg, "Cc: buyer@example.com\r\n")
	require.Contains(t, got.msg, "2026-03-01T10:00:00Z")
}

func TestSendEmail_Errors(t *testing.T) {
	t.Parallel()

	svc, _ := newCapturingService(errors.New("connection refused"))
	require.ErrorIs(t, svc.SendEmail(context.Background(), EmailRequest{}), ErrNoRecipients)

	err := svc.SendEmail(context.Background(), EmailRequest{To: []string{"a@example.com"}})
	require.ErrorContains(t, err, "connection refused")
}

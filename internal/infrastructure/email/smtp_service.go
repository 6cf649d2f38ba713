package email

// internal/infrastructure/email/smtp_service.go
import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"payment-reconciler/internal/config"
	"payment-reconciler/pkg/logger"
)

var ErrNoRecipients = errors.New("email has no recipients")

type EmailService interface {
	SendEmail(ctx context.Context, req EmailRequest) error
	SendPaymentOutcome(ctx context.Context, data PaymentOutcomeData) error
}

// sendFunc matches smtp.SendMail so tests can capture messages.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type smtpEmailService struct {
	smtpAddr string
	smtpFrom string
	opsInbox string
	send     sendFunc
}

func NewSMTPEmailService(cfg config.SMTPConfig) EmailService {
	if !cfg.Enabled {
		return &logOnlyEmailService{}
	}
	return &smtpEmailService{
		smtpAddr: cfg.Host + ":" + cfg.Port,
		smtpFrom: cfg.From,
		opsInbox: cfg.OpsInbox,
		send:     smtp.SendMail,
	}
}

func (s *smtpEmailService) SendEmail(ctx context.Context, req EmailRequest) error {
	if len(req.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.smtpFrom, req)
	rcpt := append(append([]string{}, req.To...), req.Cc...)

	// Gửi email qua SMTP
	if err := s.send(s.smtpAddr, nil, s.smtpFrom, rcpt, msg); err != nil {
		logger.ErrorWithFields("Failed to send email", err, map[string]interface{}{
			"to":        strings.Join(req.To, ","),
			"smtp_addr": s.smtpAddr,
		})
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *smtpEmailService) SendPaymentOutcome(ctx context.Context, data PaymentOutcomeData) error {
	req := EmailRequest{
		To:      []string{s.opsInbox},
		Subject: fmt.Sprintf("Payment %s: order %s", data.PaymentState, data.MerchantOrderID),
		Body:    paymentOutcomeBody(data),
	}
	if data.CustomerEmail != "" {
		req.Cc = []string{data.CustomerEmail}
	}
	return s.SendEmail(ctx, req)
}

func paymentOutcomeBody(data PaymentOutcomeData) string {
	return fmt.Sprintf(`Order:      %s
State:      %s
Recorded:   %s
Settled at: %s
`, data.MerchantOrderID, data.PaymentState, data.Source, data.SettledAt.UTC().Format(time.RFC3339))
}

func buildMessage(from string, req EmailRequest) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(req.To, ", "))
	if len(req.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(req.Cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", req.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(req.Body)
	return []byte(b.String())
}

// logOnlyEmailService is used when SMTP_ENABLED=false.
type logOnlyEmailService struct{}

func (logOnlyEmailService) SendEmail(_ context.Context, req EmailRequest) error {
	logger.Info("Email suppressed (SMTP disabled)", map[string]interface{}{
		"to":      strings.Join(req.To, ","),
		"subject": req.Subject,
	})
	return nil
}

func (l logOnlyEmailService) SendPaymentOutcome(ctx context.Context, data PaymentOutcomeData) error {
	return l.SendEmail(ctx, EmailRequest{
		To:      []string{"ops"},
		Subject: fmt.Sprintf("Payment %s: order %s", data.PaymentState, data.MerchantOrderID),
	})
}

package email

import "time"

type EmailRequest struct {
	To      []string // Recipients
	Cc      []string // Carbon copy (optional)
	Subject string
	Body    string // plain text
}

// PaymentOutcomeData is what the ops inbox is told about a settled order.
type PaymentOutcomeData struct {
	MerchantOrderID string
	PaymentState    string
	Source          string
	CustomerEmail   string
	SettledAt       time.Time
}

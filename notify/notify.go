// Package notify delivers out-of-band notifications about filing outcomes.
// Delivery is best-effort auxiliary behavior: failures are reported as
// DeliveryError and logged by callers, never escalated to run failure.
package notify

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/phelix001/ISPFCCComplainer/config"
)

// DeliveryError reports a failed notification delivery.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notification delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Notifier sends a message out-of-band.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// SendGrid delivers notifications by email through the SendGrid API.
type SendGrid struct {
	apiKey string
	from   *mail.Email
	to     *mail.Email
}

// NewSendGrid builds a notifier from the config. It is a precondition
// violation to construct one when notification is not configured.
func NewSendGrid(cfg *config.Config) (*SendGrid, error) {
	if !cfg.EmailEnabled() {
		return nil, errors.New("email notifications not configured")
	}
	return &SendGrid{
		apiKey: cfg.SendGridAPIKey,
		from:   mail.NewEmail(cfg.FirstName+" "+cfg.LastName, cfg.Email),
		to:     mail.NewEmail("", cfg.NotificationEmail),
	}, nil
}

func (s *SendGrid) Send(ctx context.Context, subject, body string) error {
	message := mail.NewSingleEmail(s.from, subject, s.to, body, body)
	client := sendgrid.NewSendClient(s.apiKey)

	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	if resp.StatusCode >= 400 {
		return &DeliveryError{Err: errors.Errorf("sendgrid returned status %d", resp.StatusCode)}
	}
	return nil
}

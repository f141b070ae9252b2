// Package notify delivers operational email via SendGrid.
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"claimsync/internal/nightly"
)

const senderAddress = "noreply@claimsync.io"

// Service sends operational notifications.
type Service struct {
	apiKey   string
	opsEmail string
}

// NewService creates a notification service. With an empty API key the
// service is a no-op, so deployments without SendGrid stay quiet instead
// of failing.
func NewService(apiKey, opsEmail string) *Service {
	return &Service{
		apiKey:   apiKey,
		opsEmail: opsEmail,
	}
}

// Configured reports whether the service can actually send.
func (s *Service) Configured() bool {
	return s.apiKey != "" && s.opsEmail != ""
}

// SendNightlySummary mails the nightly sweep's damage report to the
// operations inbox.
func (s *Service) SendNightlySummary(ctx context.Context, summary nightly.Summary) error {
	if !s.Configured() {
		return nil
	}

	from := mail.NewEmail("ClaimSync", senderAddress)
	to := mail.NewEmail("Operations", s.opsEmail)

	subject := fmt.Sprintf("Nightly evidence sync: %d processed, %d failed", summary.Processed, summary.Failed)

	body := fmt.Sprintf(`Nightly evidence sync finished.

Window: %s to %s

Claims processed: %d
Claims skipped:   %d
Claims failed:    %d`,
		summary.WindowStart.Format("2006-01-02 15:04 MST"),
		summary.WindowEnd.Format("2006-01-02 15:04 MST"),
		summary.Processed,
		summary.Skipped,
		summary.Failed,
	)

	message := mail.NewSingleEmail(from, subject, to, body, body)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send summary email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	return nil
}

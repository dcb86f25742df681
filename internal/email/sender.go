package email

import (
	"context"

	"lexmatch_backend/platform/config"
)

// Sender delivers case notifications.
type Sender interface {
	SendCaseUrgentEmail(ctx context.Context, toEmail, caseNumber, title string, riskScore int) error
	SendRecommendationsReadyEmail(ctx context.Context, toEmail, caseNumber string, count int) error
	SendAdvocateHiredEmail(ctx context.Context, toEmail, caseNumber, advocateName string) error
	SendCaseAssignmentEmail(ctx context.Context, toEmail, advocateName, caseNumber string) error
	SendCaseResolvedEmail(ctx context.Context, toEmail, caseNumber, outcome, summary string) error
}

type NoopSender struct{}

func (NoopSender) SendCaseUrgentEmail(ctx context.Context, toEmail, caseNumber, title string, riskScore int) error {
	return nil
}

func (NoopSender) SendRecommendationsReadyEmail(ctx context.Context, toEmail, caseNumber string, count int) error {
	return nil
}

func (NoopSender) SendAdvocateHiredEmail(ctx context.Context, toEmail, caseNumber, advocateName string) error {
	return nil
}

func (NoopSender) SendCaseAssignmentEmail(ctx context.Context, toEmail, advocateName, caseNumber string) error {
	return nil
}

func (NoopSender) SendCaseResolvedEmail(ctx context.Context, toEmail, caseNumber, outcome, summary string) error {
	return nil
}

// NewSender returns an SMTP sender, or a NoopSender when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}

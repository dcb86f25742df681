package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendCaseUrgentEmail(ctx context.Context, toEmail, caseNumber, title string, riskScore int) error {
	content, err := renderEmailTemplate("case_urgent.html", caseUrgentEmailData{
		baseEmailData: baseEmailData{
			Title:   "Your case has been prioritised",
			Heading: "Your case has been prioritised",
		},
		CaseNumber: caseNumber,
		CaseTitle:  title,
		RiskScore:  riskScore,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectCaseUrgentFmt, caseNumber), content)
}

func (s *SMTPSender) SendRecommendationsReadyEmail(ctx context.Context, toEmail, caseNumber string, count int) error {
	content, err := renderEmailTemplate("recommendations_ready.html", recommendationsReadyEmailData{
		baseEmailData: baseEmailData{
			Title:   "Advocates recommended",
			Heading: "Advocates recommended for your case",
		},
		CaseNumber: caseNumber,
		Count:      count,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectRecommendationsReadyFmt, caseNumber), content)
}

func (s *SMTPSender) SendAdvocateHiredEmail(ctx context.Context, toEmail, caseNumber, advocateName string) error {
	content, err := renderEmailTemplate("advocate_hired.html", advocateHiredEmailData{
		baseEmailData: baseEmailData{
			Title:   "Advocate assigned",
			Heading: "Your advocate has been assigned",
		},
		CaseNumber:   caseNumber,
		AdvocateName: advocateName,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectAdvocateHiredFmt, caseNumber), content)
}

func (s *SMTPSender) SendCaseAssignmentEmail(ctx context.Context, toEmail, advocateName, caseNumber string) error {
	content, err := renderEmailTemplate("case_assignment.html", caseAssignmentEmailData{
		baseEmailData: baseEmailData{
			Title:   "New case assigned",
			Heading: "A client has hired you",
		},
		AdvocateName: advocateName,
		CaseNumber:   caseNumber,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectCaseAssignmentFmt, caseNumber), content)
}

func (s *SMTPSender) SendCaseResolvedEmail(ctx context.Context, toEmail, caseNumber, outcome, summary string) error {
	content, err := renderEmailTemplate("case_resolved.html", caseResolvedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Case resolved",
			Heading: "Your case has been resolved",
		},
		CaseNumber: caseNumber,
		Outcome:    outcome,
		Summary:    summary,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectCaseResolvedFmt, caseNumber), content)
}

package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type caseUrgentEmailData struct {
	baseEmailData
	CaseNumber string
	CaseTitle  string
	RiskScore  int
}

type recommendationsReadyEmailData struct {
	baseEmailData
	CaseNumber string
	Count      int
}

type advocateHiredEmailData struct {
	baseEmailData
	CaseNumber   string
	AdvocateName string
}

type caseAssignmentEmailData struct {
	baseEmailData
	AdvocateName string
	CaseNumber   string
}

type caseResolvedEmailData struct {
	baseEmailData
	CaseNumber string
	Outcome    string
	Summary    string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

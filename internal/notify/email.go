package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/chative-realty/leadbot/internal/agent/model"
)

//go:embed template/lead_email.html
var templateFS embed.FS

var (
	leadEmailTmpl = template.Must(template.ParseFS(templateFS, "template/lead_email.html"))
	markdown      = goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
)

// LeadEmail is a rendered notification.
type LeadEmail struct {
	Subject string
	Text    string
	HTML    string
}

// RenderLeadEmail builds the agent notification for lead. The summary is
// Markdown written by the model; raw HTML in it is not rendered.
func RenderLeadEmail(lead model.LeadRecord, summary string) (LeadEmail, error) {
	name := strings.TrimSpace(lead.Name)
	if name == "" {
		name = "A prospect"
	}

	var summaryHTML bytes.Buffer
	if err := markdown.Convert([]byte(summary), &summaryHTML); err != nil {
		return LeadEmail{}, fmt.Errorf("render summary markdown: %w", err)
	}

	var body bytes.Buffer
	err := leadEmailTmpl.Execute(&body, map[string]any{
		"Lead":     lead,
		"Name":     name,
		"Summary":  template.HTML(summaryHTML.String()),
		"Received": lead.CreatedAt.Format(time.RFC1123),
		"HasDate":  !lead.CreatedAt.IsZero(),
	})
	if err != nil {
		return LeadEmail{}, fmt.Errorf("render lead email: %w", err)
	}

	return LeadEmail{
		Subject: fmt.Sprintf("New Lead: %s is enquiring about your listing", name),
		Text:    leadText(lead, summary),
		HTML:    body.String(),
	}, nil
}

func leadText(lead model.LeadRecord, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\nPhone: %s\n", lead.Name, lead.Email, lead.Phone)
	if lead.PropertyName != "" {
		fmt.Fprintf(&b, "Property: %s\n", lead.PropertyName)
	}
	if lead.ViewingType != "" {
		fmt.Fprintf(&b, "Viewing: %s\n", lead.ViewingType.Label())
	}
	if lead.TimePreference != "" {
		fmt.Fprintf(&b, "Preferred time: %s\n", lead.TimePreference)
	}
	b.WriteString("\n")
	b.WriteString(summary)
	return b.String()
}

// Package notify delivers lead notifications to listing agents.
package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/chative-realty/leadbot/internal/agent/model"
	logx "github.com/chative-realty/leadbot/pkg/logger"
)

// New returns an SMTP notifier, or a LogNotifier when SMTP is not configured.
func New(cfg Config) model.Notifier {
	if !cfg.Enabled() {
		logx.Warn().Msg("SMTP_HOST not set, lead emails will only be logged")
		return LogNotifier{}
	}
	return &SMTPNotifier{cfg: cfg}
}

// SMTPNotifier sends lead emails through one SMTP account.
type SMTPNotifier struct {
	cfg Config
}

func (n *SMTPNotifier) SendLeadEmail(ctx context.Context, agentEmail string, lead model.LeadRecord, summary string) error {
	msg, err := n.buildMessage(agentEmail, lead, summary)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTimeout(n.cfg.timeout()),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send lead email to %s: %w", agentEmail, err)
	}

	logx.Info().Str("lead_id", lead.ID).Str("to", agentEmail).Msg("lead email sent")
	return nil
}

func (n *SMTPNotifier) buildMessage(agentEmail string, lead model.LeadRecord, summary string) (*mail.Msg, error) {
	email, err := RenderLeadEmail(lead, summary)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(n.cfg.FromName, n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", n.cfg.From, err)
	}
	if err := msg.To(agentEmail); err != nil {
		return nil, fmt.Errorf("invalid agent email %q: %w", agentEmail, err)
	}
	if lead.Email != "" {
		if err := msg.ReplyTo(lead.Email); err != nil {
			logx.Warn().Err(err).Str("lead_id", lead.ID).Msg("lead email has no valid reply-to")
		}
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)
	return msg, nil
}

// LogNotifier records lead notifications in the log instead of sending them.
type LogNotifier struct{}

func (LogNotifier) SendLeadEmail(ctx context.Context, agentEmail string, lead model.LeadRecord, summary string) error {
	email, err := RenderLeadEmail(lead, summary)
	if err != nil {
		return err
	}
	logx.Info().
		Str("lead_id", lead.ID).
		Str("to", agentEmail).
		Str("subject", email.Subject).
		Msg("lead email not sent, SMTP disabled")
	return nil
}

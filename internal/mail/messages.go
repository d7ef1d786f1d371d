package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/khanghh/donorshield/internal/security"
)

func formatAlert(alert *security.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A %s severity security alert was raised.\n\n", alert.Severity)
	fmt.Fprintf(&b, "Alert ID:    %s\n", alert.ID)
	fmt.Fprintf(&b, "Event type:  %s\n", alert.Type)
	fmt.Fprintf(&b, "Identifier:  %s\n", alert.Identifier)
	fmt.Fprintf(&b, "Observed:    %d events in %s\n", alert.Count, time.Duration(alert.WindowMs)*time.Millisecond)
	fmt.Fprintf(&b, "Threshold:   %d\n", alert.Threshold)
	fmt.Fprintf(&b, "Raised at:   %s\n", alert.Time().UTC().Format(time.RFC3339))
	return b.String()
}

func SendSecurityAlert(sender MailSender, recipients, cc []string, alert *security.Alert) error {
	return sender.Send(&Message{
		To:      recipients,
		Cc:      cc,
		Subject: fmt.Sprintf("[%s] %s alert for %s", strings.ToUpper(alert.Severity.String()), alert.Type, alert.Identifier),
		Body:    formatAlert(alert),
	})
}

// AlertMailer mails every alert at or above a minimum severity. Critical
// alerts also copy the escalation recipients.
type AlertMailer struct {
	sender      MailSender
	recipients  []string
	escalation  []string
	minSeverity security.Severity
}

func (m *AlertMailer) NotifyAlert(ctx context.Context, alert security.Alert) error {
	if alert.Severity < m.minSeverity {
		return nil
	}
	var cc []string
	if alert.Severity >= security.SeverityCritical {
		cc = m.escalation
	}
	return SendSecurityAlert(m.sender, m.recipients, cc, &alert)
}

func NewAlertMailer(sender MailSender, minSeverity security.Severity, recipients, escalation []string) *AlertMailer {
	return &AlertMailer{
		sender:      sender,
		recipients:  recipients,
		escalation:  escalation,
		minSeverity: minSeverity,
	}
}

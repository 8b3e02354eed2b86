package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/conversationai/harassment-manager/internal/config"
	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/conversationai/harassment-manager/internal/report"
	"github.com/conversationai/harassment-manager/internal/toxicity"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service sends finalized-report summaries via configured channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// WebhookMessage is the card posted to the configured webhook
type WebhookMessage struct {
	Title    string        `json:"title"`
	Text     string        `json:"text"`
	Sections []CardSection `json:"sections,omitempty"`
}

type CardSection struct {
	ActivityTitle string     `json:"activityTitle,omitempty"`
	ActivityText  string     `json:"activityText,omitempty"`
	Facts         []CardFact `json:"facts,omitempty"`
}

type CardFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendReportSummary sends a summary of a finalized report via every
// configured channel
func (s *Service) SendReportSummary(snapshot report.Snapshot) error {
	var errors []string

	if s.config.WebhookURL != "" {
		if err := s.sendToWebhook(snapshot); err != nil {
			logrus.Errorf("Failed to send webhook notification: %v", err)
			errors = append(errors, fmt.Sprintf("webhook: %v", err))
		} else {
			logrus.Info("Successfully sent report summary to webhook")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(snapshot); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("email: %v", err))
		} else {
			logrus.Info("Successfully sent report summary via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToWebhook(snapshot report.Snapshot) error {
	message := s.buildWebhookMessage(snapshot)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.WebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send webhook message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildWebhookMessage(snapshot report.Snapshot) *WebhookMessage {
	message := &WebhookMessage{
		Title: "Harassment Report Finalized",
		Text:  fmt.Sprintf("Report %s contains %d comments", snapshot.ReportID, len(snapshot.Items)),
	}

	facts := []CardFact{
		{Name: "Total Comments", Value: fmt.Sprintf("%d", len(snapshot.Items))},
		{Name: "Requested Action", Value: string(snapshot.Action)},
		{Name: "Created", Value: snapshot.CreatedAt.Format("2006-01-02 15:04:05 UTC")},
	}
	if snapshot.Context != "" {
		facts = append(facts, CardFact{Name: "Context", Value: snapshot.Context})
	}
	message.Sections = append(message.Sections, CardSection{
		ActivityTitle: "Summary",
		Facts:         facts,
	})

	return message
}

func (s *Service) sendEmail(snapshot report.Snapshot) error {
	subject := fmt.Sprintf("Harassment Report - %s (%d comments)",
		snapshot.CreatedAt.Format("Jan 2, 2006"), len(snapshot.Items))

	htmlBody, err := s.buildEmailHTML(snapshot)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	textBody := s.buildEmailText(snapshot)

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Service) buildEmailHTML(snapshot report.Snapshot) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Harassment Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #6200ee; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .comment { border-left: 4px solid #6200ee; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .comment-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Harassment Report</h1>
        <p>Generated on {{.CreatedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Comments:</strong> {{len .Items}}</p>
        <p><strong>Requested Action:</strong> {{.Action}}</p>
        {{if .Context}}<p><strong>Context:</strong> {{.Context}}</p>{{end}}
    </div>

    {{if .Items}}
    <h2>Reported Comments</h2>
    {{range $index, $scored := .Items}}
        {{if lt $index 10}}
        <div class="comment">
            <p>{{$scored.Item.Text | truncate 200}}</p>
            <div class="comment-meta">
                By {{$scored.Item.AuthorScreenName}} | {{$scored.Item.CreatedAt.Format "Jan 2, 2006"}}
                {{with toxScore $scored}} | Toxicity: {{printf "%.2f" .}}{{end}}
            </div>
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This summary was generated automatically by Harassment Manager.</small></p>
</body>
</html>
`

	t := template.New("email").Funcs(template.FuncMap{
		"truncate": func(s string, length int) string {
			if len(s) <= length {
				return s
			}
			return s[:length] + "..."
		},
		"toxScore": func(scored models.ScoredItem) float64 {
			score, ok := scored.AttributeScore(toxicity.AttributeToxicity)
			if !ok {
				return 0
			}
			return score
		},
	})

	t, err := t.Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, snapshot); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(snapshot report.Snapshot) string {
	var text strings.Builder

	text.WriteString("Harassment Report\n")
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", snapshot.CreatedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Comments: %d\n", len(snapshot.Items)))
	text.WriteString(fmt.Sprintf("Requested Action: %s\n", snapshot.Action))
	if snapshot.Context != "" {
		text.WriteString(fmt.Sprintf("Context: %s\n", snapshot.Context))
	}

	if len(snapshot.Items) > 0 {
		text.WriteString("\nREPORTED COMMENTS\n")
		text.WriteString("=================\n")

		limit := 10
		if len(snapshot.Items) < limit {
			limit = len(snapshot.Items)
		}

		for i := 0; i < limit; i++ {
			scored := snapshot.Items[i]
			content := scored.Item.Text
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, content))
			text.WriteString(fmt.Sprintf("   Author: %s | Date: %s\n",
				scored.Item.AuthorScreenName, scored.Item.CreatedAt.Format("Jan 2, 2006")))
			if score, ok := scored.AttributeScore(toxicity.AttributeToxicity); ok {
				text.WriteString(fmt.Sprintf("   Toxicity: %.2f\n", score))
			}
		}
	}

	text.WriteString("\n---\nThis summary was generated automatically by Harassment Manager.\n")

	return text.String()
}

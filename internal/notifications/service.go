package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/config"
	"github.com/solosuccess/competitor-intel/internal/models"
	"gopkg.in/gomail.v2"
)

// ErrEmailDisabled is returned when no SMTP server is configured
var ErrEmailDisabled = errors.New("email delivery is not configured")

// Dialer sends prepared mail messages
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service handles sending notifications via email and the chat webhook
type Service struct {
	config        *config.Config
	client        *resty.Client
	dialer        Dialer
	retryAttempts uint
	retryDelay    time.Duration
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	var dialer Dialer
	if cfg.SMTPHost != "" {
		dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return NewServiceWithDialer(cfg, dialer)
}

// NewServiceWithDialer creates a notification service that sends mail through dialer
func NewServiceWithDialer(cfg *config.Config, dialer Dialer) *Service {
	return &Service{
		config:        cfg,
		client:        resty.New().SetTimeout(30 * time.Second),
		dialer:        dialer,
		retryAttempts: 3,
		retryDelay:    time.Second,
	}
}

// SendCompetitorAlert emails a single activity to the user
func (s *Service) SendCompetitorAlert(ctx context.Context, to string, activity *models.CompetitorActivity) error {
	htmlBody, err := buildAlertHTML(activity)
	if err != nil {
		return fmt.Errorf("failed to build alert HTML: %w", err)
	}

	subject := fmt.Sprintf("Competitor Alert: %s - %s", activity.CompetitorName, activity.Title)
	if err := s.sendEmail(ctx, to, subject, htmlBody, buildAlertText(activity)); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"to":          to,
		"activity_id": activity.ID,
		"importance":  activity.Importance,
	}).Info("Sent competitor alert email")
	return nil
}

// SendBriefing emails a rendered intelligence briefing
func (s *Service) SendBriefing(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if err := s.sendEmail(ctx, to, subject, htmlBody, textBody); err != nil {
		return err
	}
	logrus.Infof("Sent briefing %q to %s", subject, to)
	return nil
}

// SendPush posts the activity as a message card to the alert webhook.
// Delivery is retried with backoff on transport errors and 5xx responses.
func (s *Service) SendPush(ctx context.Context, userID string, activity *models.CompetitorActivity) error {
	if s.config.AlertWebhookURL == "" {
		logrus.Debugf("Push alert for %s skipped: no webhook configured", activity.ID)
		return nil
	}

	message := buildTeamsMessage(userID, activity)

	err := retry.Do(
		func() error {
			resp, err := s.client.R().
				SetContext(ctx).
				SetHeader("Content-Type", "application/json").
				SetBody(message).
				Post(s.config.AlertWebhookURL)
			if err != nil {
				return fmt.Errorf("failed to send webhook message: %w", err)
			}

			if resp.StatusCode() >= http.StatusInternalServerError {
				return fmt.Errorf("webhook returned status %d", resp.StatusCode())
			}
			if resp.StatusCode() >= http.StatusMultipleChoices {
				return retry.Unrecoverable(fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body())))
			}
			return nil
		},
		retry.Attempts(s.retryAttempts),
		retry.Delay(s.retryDelay),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logrus.Warnf("Retrying push alert for activity %s (attempt %d): %v", activity.ID, n+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("push alert failed: %w", err)
	}

	logrus.Debugf("Sent push alert for activity %s", activity.ID)
	return nil
}

func (s *Service) sendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if s.dialer == nil {
		return ErrEmailDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.Sender())
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func importanceColor(importance models.Importance) string {
	switch importance {
	case models.ImportanceCritical:
		return "d13438"
	case models.ImportanceHigh:
		return "f6ad55"
	case models.ImportanceMedium:
		return "68d391"
	default:
		return "90cdf4"
	}
}

func buildTeamsMessage(userID string, activity *models.CompetitorActivity) *TeamsMessage {
	facts := []TeamsFact{
		{Name: "Competitor", Value: activity.CompetitorName},
		{Name: "Importance", Value: strings.ToUpper(string(activity.Importance))},
		{Name: "Detected", Value: activity.DetectedAt.UTC().Format("2006-01-02 15:04 UTC")},
		{Name: "User", Value: userID},
	}
	if activity.SourceURL != "" {
		facts = append(facts, TeamsFact{Name: "Source", Value: activity.SourceURL})
	}

	return &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: importanceColor(activity.Importance),
		Title:      fmt.Sprintf("Competitor Alert: %s", activity.CompetitorName),
		Text:       activity.Title,
		Sections: []TeamsSection{{
			ActivityTitle: activity.Title,
			ActivityText:  activity.Description,
			Facts:         facts,
			Markdown:      true,
		}},
	}
}

var alertTemplate = template.Must(template.New("alert").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
}).Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #f56565; color: white; padding: 30px; border-radius: 10px; margin-bottom: 30px; }
    .alert { background: #fff5f5; border-left: 4px solid #fc8181; padding: 20px; border-radius: 8px; }
    .competitor { color: #667eea; font-weight: 600; font-size: 18px; }
    .activity-title { font-size: 16px; font-weight: 600; color: #2d3748; }
    .button { display: inline-block; background: #667eea; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; }
    .footer { text-align: center; color: #a0aec0; font-size: 12px; margin-top: 40px; }
  </style>
</head>
<body>
  <div class="header"><h1>{{.Importance | printf "%s" | upper}} Competitor Alert</h1></div>
  <div class="alert">
    <div class="competitor">{{.CompetitorName}}</div>
    <div class="activity-title">{{.Title}}</div>
    <p>{{if .Description}}{{.Description}}{{else}}No additional details available{{end}}</p>
    {{if .SourceURL}}<a href="{{.SourceURL}}" class="button">View Details</a>{{end}}
  </div>
  <div class="footer">
    <p>This alert was generated automatically by competitor tracking.</p>
    <p>To manage your alert settings, visit your dashboard.</p>
  </div>
</body>
</html>
`))

func buildAlertHTML(activity *models.CompetitorActivity) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, activity); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildAlertText(activity *models.CompetitorActivity) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("%s COMPETITOR ALERT\n\n", strings.ToUpper(string(activity.Importance))))
	text.WriteString(fmt.Sprintf("Competitor: %s\n", activity.CompetitorName))
	text.WriteString(fmt.Sprintf("%s\n", activity.Title))
	if activity.Description != "" {
		text.WriteString(fmt.Sprintf("%s\n", activity.Description))
	} else {
		text.WriteString("No additional details available\n")
	}
	if activity.SourceURL != "" {
		text.WriteString(fmt.Sprintf("Source: %s\n", activity.SourceURL))
	}
	text.WriteString(fmt.Sprintf("Detected: %s\n", activity.DetectedAt.UTC().Format("Jan 2, 2006 3:04 PM UTC")))
	text.WriteString("\n---\nThis alert was generated automatically by competitor tracking.\n")

	return text.String()
}

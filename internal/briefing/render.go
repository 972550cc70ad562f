package briefing

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/solosuccess/competitor-intel/internal/models"
)

const timestampLayout = "Jan 2, 2006 3:04 PM"

var briefingTemplate = template.Must(template.New("briefing").Funcs(template.FuncMap{
	"upper": func(i models.Importance) string { return strings.ToUpper(string(i)) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; border-radius: 10px; margin-bottom: 30px; }
    .header h1 { margin: 0; font-size: 24px; }
    .header p { margin: 10px 0 0 0; opacity: 0.9; }
    .summary { background: #f7fafc; padding: 20px; border-radius: 8px; margin-bottom: 30px; border-left: 4px solid #667eea; }
    .section { margin-bottom: 30px; }
    .section-title { font-size: 18px; font-weight: 600; margin: 0; }
    .activity { background: white; border: 1px solid #e2e8f0; border-radius: 8px; padding: 15px; margin-bottom: 10px; }
    .activity-title { font-weight: 600; color: #2d3748; margin: 0; }
    .competitor-name { color: #667eea; font-size: 14px; }
    .activity-description { color: #4a5568; font-size: 14px; margin: 8px 0; }
    .activity-link { color: #667eea; text-decoration: none; font-size: 14px; }
    .activity-time { color: #a0aec0; font-size: 12px; }
    .badge { color: white; padding: 4px 8px; border-radius: 4px; font-size: 12px; font-weight: 600; }
    .badge-critical { background: #fc8181; }
    .badge-high { background: #f6ad55; }
    .badge-medium { background: #68d391; }
    .badge-low { background: #90cdf4; }
    .footer { text-align: center; color: #a0aec0; font-size: 12px; margin-top: 40px; padding-top: 20px; border-top: 1px solid #e2e8f0; }
  </style>
</head>
<body>
  <div class="header">
    <h1>🕵️ Intelligence Briefing</h1>
    <p>{{.Period}}</p>
  </div>

  <div class="summary">
    <p><strong>Summary:</strong> {{.Summary}}</p>
    <p><strong>Total Activities:</strong> {{.TotalActivities}} | <strong>Critical Alerts:</strong> {{.CriticalAlerts}}</p>
  </div>
{{range .Sections}}{{$importance := .Importance}}
  <div class="section">
    <h2 class="section-title">{{.Title}}</h2>
    <p>{{.Content}}</p>
{{range .Activities}}
    <div class="activity">
      <span class="badge badge-{{$importance}}">{{upper $importance}}</span>
      <h3 class="activity-title">{{.Title}}</h3>
      <p class="competitor-name">{{.CompetitorName}}</p>
      {{if .Description}}<p class="activity-description">{{.Description}}</p>{{end}}
      {{if .SourceURL}}<a href="{{.SourceURL}}" class="activity-link">View Source →</a>{{end}}
      <p class="activity-time">{{call $.Stamp .DetectedAt}}</p>
    </div>
{{end}}
  </div>
{{end}}
  <div class="footer">
    <p>This briefing was automatically generated by SoloSuccess AI</p>
    <p>To manage your competitor tracking settings, visit your dashboard</p>
  </div>
</body>
</html>
`))

// RenderHTML renders the briefing as an HTML email body. Times are shown in loc.
func RenderHTML(b *models.Briefing, loc *time.Location) (string, error) {
	data := struct {
		*models.Briefing
		Stamp func(time.Time) string
	}{
		Briefing: b,
		Stamp:    func(t time.Time) string { return t.In(loc).Format(timestampLayout) },
	}

	var buf bytes.Buffer
	if err := briefingTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderText renders the briefing as plain text
func RenderText(b *models.Briefing, loc *time.Location) string {
	var text strings.Builder

	text.WriteString("INTELLIGENCE BRIEFING\n")
	text.WriteString(b.Period + "\n")
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", b.GeneratedAt.In(loc).Format(timestampLayout)))
	text.WriteString("SUMMARY\n")
	text.WriteString(b.Summary + "\n")
	text.WriteString(fmt.Sprintf("Total Activities: %d | Critical Alerts: %d\n\n", b.TotalActivities, b.CriticalAlerts))

	for _, section := range b.Sections {
		text.WriteString(fmt.Sprintf("\n%s\n", section.Title))
		text.WriteString(strings.Repeat("=", utf8.RuneCountInString(section.Title)) + "\n")
		text.WriteString(section.Content + "\n\n")

		for _, a := range section.Activities {
			text.WriteString(fmt.Sprintf("  • %s\n", a.Title))
			text.WriteString(fmt.Sprintf("    Competitor: %s\n", a.CompetitorName))
			if a.Description != "" {
				text.WriteString(fmt.Sprintf("    %s\n", a.Description))
			}
			if a.SourceURL != "" {
				text.WriteString(fmt.Sprintf("    Source: %s\n", a.SourceURL))
			}
			text.WriteString(fmt.Sprintf("    Detected: %s\n\n", a.DetectedAt.In(loc).Format(timestampLayout)))
		}
	}

	text.WriteString("\n---\nThis briefing was automatically generated by SoloSuccess AI\n")
	return text.String()
}

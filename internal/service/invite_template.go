package service

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/Strob0t/Studio/internal/domain/meeting"
)

var inviteTemplate = template.Must(template.New("invite").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:Arial,sans-serif;color:#1f2937;">
  <h2 style="margin-bottom:4px;">You're invited: {{.Title}}</h2>
  <p>{{.Host}} has invited you to a meeting.</p>
  <table cellpadding="4" style="border-collapse:collapse;">
    <tr><td><strong>Date</strong></td><td>{{.Date}}</td></tr>
    <tr><td><strong>Time</strong></td><td>{{.Time}}</td></tr>
    <tr><td><strong>Duration</strong></td><td>{{.Duration}} minutes</td></tr>
    <tr><td><strong>Host</strong></td><td>{{.Host}}</td></tr>
  </table>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <p>
    <a href="{{.Link}}" style="background:#4f46e5;color:#ffffff;padding:10px 18px;text-decoration:none;border-radius:6px;">Join meeting</a>
  </p>
  <p style="font-size:12px;color:#6b7280;">Or open {{.Link}} in your browser.</p>
</body>
</html>
`))

type inviteView struct {
	Title       string
	Description string
	Date        string
	Time        string
	Duration    int
	Host        string
	Link        string
}

func renderInvite(m *meeting.Meeting) (subject, html string, err error) {
	v := inviteView{
		Title:       m.Title,
		Description: m.Description,
		Date:        "To be announced",
		Time:        "To be announced",
		Duration:    m.DurationMinutes,
		Host:        m.HostName,
		Link:        m.JoinURL,
	}
	if v.Host == "" {
		v.Host = "Your host"
	}
	if m.ScheduledAt != nil {
		at := m.ScheduledAt.UTC()
		v.Date = at.Format("Monday, January 2, 2006")
		v.Time = at.Format("15:04") + " UTC"
	}

	var buf bytes.Buffer
	if err := inviteTemplate.Execute(&buf, v); err != nil {
		return "", "", fmt.Errorf("render invite: %w", err)
	}
	return "Invitation: " + m.Title, buf.String(), nil
}

func inviteText(m *meeting.Meeting) string {
	when := "at a time to be announced"
	if m.ScheduledAt != nil {
		when = "on " + m.ScheduledAt.UTC().Format(time.RFC1123)
	}
	return fmt.Sprintf("You're invited to %q %s. Join: %s", m.Title, when, m.JoinURL)
}

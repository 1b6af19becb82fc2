// Package email provides SMTP and log-only notifiers for invitation mail.
package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/Studio/internal/port/notifier"
)

func init() {
	notifier.Register("smtp", func(cfg map[string]string) (notifier.Notifier, error) {
		if cfg["host"] == "" || cfg["from"] == "" {
			return nil, notifier.ErrNotConfigured
		}
		port := 587
		if v := cfg["port"]; v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("smtp: port: %w", err)
			}
			port = n
		}
		return NewNotifier(SMTPConfig{
			Host:     cfg["host"],
			Port:     port,
			From:     cfg["from"],
			User:     cfg["user"],
			Password: cfg["password"],
		}), nil
	})
}

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	User     string
	Password string
}

// Notifier sends email via SMTP.
type Notifier struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ notifier.Notifier = (*Notifier)(nil)

// NewNotifier creates a new SMTP notifier.
func NewNotifier(cfg SMTPConfig) *Notifier {
	return &Notifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (n *Notifier) Name() string { return "smtp" }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{HTML: true, Attachments: true}
}

// Send delivers msg. net/smtp has no context support, so ctx is only
// checked before dialing.
func (n *Notifier) Send(ctx context.Context, msg notifier.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	raw, err := buildMIME(n.cfg.From, id, n.cfg.Host, msg)
	if err != nil {
		return "", fmt.Errorf("smtp: build message: %w", err)
	}

	var auth smtp.Auth
	if n.cfg.Password != "" {
		user := n.cfg.User
		if user == "" {
			user = n.cfg.From
		}
		auth = smtp.PlainAuth("", user, n.cfg.Password, n.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.sendMail(addr, auth, envelopeAddress(n.cfg.From), []string{msg.To}, raw); err != nil {
		return "", fmt.Errorf("smtp: send to %s: %w", msg.To, err)
	}
	return id, nil
}

// buildMIME renders a multipart/mixed message with an HTML body and the
// attachments base64 encoded.
func buildMIME(from, id, host string, msg notifier.Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", id, host)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	body, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := body.Write([]byte(msg.HTML)); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ct},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(wrap76(base64.StdEncoding.EncodeToString(a.Content)))); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func wrap76(s string) string {
	var b bytes.Buffer
	for len(s) > 76 {
		b.WriteString(s[:76])
		b.WriteString("\r\n")
		s = s[76:]
	}
	b.WriteString(s)
	return b.String()
}

// envelopeAddress strips a display name ("Studio <a@b>" -> "a@b").
func envelopeAddress(from string) string {
	for i := len(from) - 1; i >= 0; i-- {
		if from[i] == '<' {
			end := len(from)
			if from[end-1] == '>' {
				end--
			}
			return from[i+1 : end]
		}
	}
	return from
}

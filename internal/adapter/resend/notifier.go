// Package resend implements the email notifier port against the Resend API.
package resend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/port/notifier"
	"github.com/Strob0t/Studio/internal/resilience"
)

const (
	providerName   = "resend"
	defaultBaseURL = "https://api.resend.com"
	defaultTimeout = 10 * time.Second
)

func init() {
	notifier.Register(providerName, func(cfg map[string]string) (notifier.Notifier, error) {
		if cfg["api_key"] == "" || cfg["from"] == "" {
			return nil, notifier.ErrNotConfigured
		}
		timeout := defaultTimeout
		if v := cfg["timeout"]; v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("resend: timeout: %w", err)
			}
			timeout = d
		}
		key := cfg["api_key"]
		return New(Config{
			BaseURL: cfg["base_url"],
			From:    cfg["from"],
			APIKey:  func() string { return key },
			Timeout: timeout,
		}), nil
	})
}

// Config configures the Resend client.
type Config struct {
	BaseURL string
	From    string
	APIKey  func() string
	Timeout time.Duration
}

// Notifier sends email through the Resend HTTP API.
type Notifier struct {
	client  *resty.Client
	from    string
	apiKey  func() string
	breaker *resilience.Breaker
}

var _ notifier.Notifier = (*Notifier)(nil)

// New creates a Resend notifier.
func New(cfg Config) *Notifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Notifier{
		client: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		from:    cfg.From,
		apiKey:  cfg.APIKey,
		breaker: resilience.NewBreaker(5, 30*time.Second).WithClassifier(resilience.ServerFaults),
	}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{HTML: true, Attachments: true}
}

type attachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

type tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type sendRequest struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Text        string       `json:"text,omitempty"`
	Attachments []attachment `json:"attachments,omitempty"`
	Tags        []tag        `json:"tags,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// Send delivers msg and returns the Resend email id.
func (n *Notifier) Send(ctx context.Context, msg notifier.Message) (string, error) {
	var id string
	err := n.breaker.Execute(func() error {
		var err error
		id, err = n.send(ctx, msg)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", &domain.UpstreamError{Provider: providerName, Message: "email provider unavailable"}
	}
	return id, err
}

func (n *Notifier) send(ctx context.Context, msg notifier.Message) (string, error) {
	body := sendRequest{
		From:    n.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}
	for _, a := range msg.Attachments {
		body.Attachments = append(body.Attachments, attachment{
			Filename:    a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}
	for name, value := range msg.Tags {
		body.Tags = append(body.Tags, tag{Name: name, Value: value})
	}
	sort.Slice(body.Tags, func(i, j int) bool { return body.Tags[i].Name < body.Tags[j].Name })

	var (
		result sendResponse
		failed apiError
	)
	resp, err := n.client.R().
		SetContext(ctx).
		SetAuthToken(n.apiKey()).
		SetBody(body).
		SetResult(&result).
		SetError(&failed).
		Post("/emails")
	if err != nil {
		return "", &domain.UpstreamError{Provider: providerName, Message: err.Error()}
	}
	if resp.IsError() {
		text := failed.Message
		if text == "" {
			text = http.StatusText(resp.StatusCode())
		}
		return "", &domain.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode(), Message: text}
	}
	return result.ID, nil
}

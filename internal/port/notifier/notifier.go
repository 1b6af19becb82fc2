// Package notifier defines the outbound email port and its provider registry.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Message is one email to a single recipient.
type Message struct {
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html"`
	Text        string            `json:"text,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Capabilities declares which features a notifier supports.
type Capabilities struct {
	HTML        bool `json:"html"`
	Attachments bool `json:"attachments"`
}

// Notifier is the port interface for sending email.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "resend", "smtp").
	Name() string

	// Capabilities returns what this notifier supports.
	Capabilities() Capabilities

	// Send delivers one message and returns the provider's message id.
	Send(ctx context.Context, msg Message) (id string, err error)
}

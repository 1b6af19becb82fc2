// Package sms defines the text-message port. No carrier is integrated yet;
// the only adapter records the intent.
package sms

import "context"

// Message is one text to a phone number in E.164-like form.
type Message struct {
	To   string
	Body string
}

// Sender delivers (or records) a text message and reports how it was handled.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) (status string, err error)
}

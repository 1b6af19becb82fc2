// Package logsms records text-message intents in the log. No carrier is
// wired yet.
package logsms

import (
	"context"
	"log/slog"

	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/port/sms"
)

// StatusLogged is reported for every message.
const StatusLogged = "logged"

// Sender logs each message at info level.
type Sender struct{}

var _ sms.Sender = Sender{}

func (Sender) Name() string { return "log" }

func (Sender) Send(ctx context.Context, msg sms.Message) (string, error) {
	logger.With(ctx).Info("sms intent logged",
		slog.String("to", msg.To),
		slog.Int("body_len", len(msg.Body)),
	)
	return StatusLogged, nil
}

package email

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/port/notifier"
)

func init() {
	notifier.Register("log", func(map[string]string) (notifier.Notifier, error) {
		return LogNotifier{}, nil
	})
}

// LogNotifier records messages in the log instead of sending them. Used in
// development when no provider key is set.
type LogNotifier struct{}

var _ notifier.Notifier = LogNotifier{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{HTML: true, Attachments: true}
}

func (LogNotifier) Send(ctx context.Context, msg notifier.Message) (string, error) {
	id := uuid.NewString()
	logger.With(ctx).Info("email logged",
		slog.String("id", id),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("attachments", len(msg.Attachments)),
	)
	return id, nil
}

package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier stands in for an email provider in dev: it only writes a log line.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendWelcome(ctx context.Context, in WelcomeInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.welcome",
		"user_id", in.UserID,
		"role", in.Role,
	)
	return nil
}

package mail

import (
	"context"
	"log/slog"
)

// LogSender writes the rendered text body to the log instead of sending it.
// Only for local development: the body contains the sign-in code.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	_, text, err := Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "email not sent (log driver)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("template", msg.Template),
		slog.String("body", text),
	)
	return nil
}

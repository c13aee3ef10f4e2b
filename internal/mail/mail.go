// Package mail renders and delivers transactional email.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/accord/internal/config"
)

const TemplateConfirmEmail = "confirm-email"

var ErrSendFailed = errors.New("failed to send email")

// Message is a templated email addressed to a single recipient.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     any
	Tag      string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ConfirmEmailData feeds the confirm-email template.
type ConfirmEmailData struct {
	Code string
	Year int
}

// New returns the sender selected by cfg.Driver.
func New(ctx context.Context, cfg config.MailConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Driver {
	case config.MailDriverSES:
		return NewSESSender(ctx, cfg.AWSRegion, cfg.From, logger)
	case config.MailDriverPostmark:
		return NewPostmarkSender(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.From, cfg.PostmarkStream), nil
	case config.MailDriverLog:
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventOAuthSignIn      = "oauth_sign_in"
	EventMagicCodeRequest = "magic_code_request"
	EventMagicCodeSignIn  = "magic_code_sign_in"
	EventSessionRefresh   = "session_refresh"
	EventLogout           = "logout"
	EventAccountCreated   = "account_created"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string // masked before it is written
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit records through the application logger
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs a sign-in, refresh or logout attempt
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.emit(ctx, level, "auth", event)
}

// LogAccountAction logs account lifecycle events such as creation
func (al *AuditLogger) LogAccountAction(ctx context.Context, eventType, userID string, metadata map[string]string) {
	al.emit(ctx, slog.LevelInfo, "account", AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Success:   true,
		Metadata:  metadata,
	})
}

func (al *AuditLogger) emit(ctx context.Context, level slog.Level, auditType string, event AuditEvent) {
	if al == nil || al.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

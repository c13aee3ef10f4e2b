package models

import "time"

// MagicCode is a short-lived sign-in code. At most one exists per email.
type MagicCode struct {
	Email     string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (m *MagicCode) IsExpired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

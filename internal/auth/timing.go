package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig sets the floor applied to failed verifications
type TimingConfig struct {
	BaseDelay      time.Duration
	Jitter         time.Duration // random extra delay in [0, Jitter)
	DelayOnSuccess bool
}

// TimingDelay pads failures so an absent, mismatched or expired code all take
// about the same wall time.
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// WaitFrom sleeps until at least the target delay has elapsed since start.
// It returns early if ctx is cancelled.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time, success bool) {
	if td == nil || (success && !td.config.DelayOnSuccess) {
		return
	}

	remaining := td.target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (td *TimingDelay) target() time.Duration {
	delay := td.config.BaseDelay
	if td.config.Jitter > 0 {
		// crypto/rand so the padding itself is not predictable
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.Jitter))); err == nil {
			delay += time.Duration(n.Int64())
		}
	}
	return delay
}

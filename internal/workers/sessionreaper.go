package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionExpirer marks idle sessions expired.
type SessionExpirer interface {
	ExpireIdle(ctx context.Context, idleLimit time.Duration) (int64, error)
}

// SessionReaper periodically expires sessions that have been idle past
// the configured limit.
type SessionReaper struct {
	sessions  SessionExpirer
	interval  time.Duration
	idleLimit time.Duration
	logger    *zap.Logger
}

// NewSessionReaper creates a session reaper. interval <= 0 selects a
// five minute sweep.
func NewSessionReaper(sessions SessionExpirer, interval, idleLimit time.Duration, logger *zap.Logger) *SessionReaper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionReaper{
		sessions:  sessions,
		interval:  interval,
		idleLimit: idleLimit,
		logger:    logger,
	}
}

// Run sweeps until the context is cancelled. One sweep runs
// immediately on start.
func (r *SessionReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *SessionReaper) sweep(ctx context.Context) {
	expired, err := r.sessions.ExpireIdle(ctx, r.idleLimit)
	if err != nil {
		r.logger.Error("session_expiry_sweep_failed", zap.Error(err))
		return
	}
	if expired > 0 {
		r.logger.Info("expired_idle_sessions", zap.Int64("count", expired))
	}
}

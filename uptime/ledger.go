package uptime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Ledger turns status transitions into downtime intervals. It is the only
// writer of intervals.
type Ledger struct {
	store   Store
	logger  *zap.Logger
	metrics *Metrics
}

// NewLedger creates a ledger over store. metrics may be nil.
func NewLedger(store Store, logger *zap.Logger, metrics *Metrics) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, logger: logger, metrics: metrics}
}

// TransitionLabel renders "<old> → <new>"; an unknown old status reads as
// "Unknown".
func TransitionLabel(oldStatus, newStatus Status) string {
	if oldStatus == "" {
		oldStatus = "Unknown"
	}
	return fmt.Sprintf("%s → %s", oldStatus, newStatus)
}

// RecordOutcome applies one transition. Equal statuses are ignored.
//
// Only Down → Up closes an interval. An interval left open by
// Down → Maintenance stays open through Maintenance → Up.
//
// Invariant violations (closing with nothing open, opening while one is
// open) are logged and swallowed; any other store error is returned so the
// caller can leave the system's status unapplied.
func (l *Ledger) RecordOutcome(ctx context.Context, systemID uint, oldStatus, newStatus Status, errorDetail string, now time.Time) error {
	if oldStatus == newStatus {
		return nil
	}

	switch {
	case newStatus == StatusDown:
		label := TransitionLabel(oldStatus, newStatus)
		err := l.store.InsertOpenInterval(ctx, systemID, now, label, errorDetail)
		if errors.Is(err, ErrOpenIntervalExists) {
			l.logger.Error("downtime interval already open, not opening another",
				zap.Uint("system_id", systemID), zap.String("transition", label))
			return nil
		}
		if err != nil {
			return fmt.Errorf("open downtime interval for system %d: %w", systemID, err)
		}
		l.logger.Warn("system went down",
			zap.Uint("system_id", systemID), zap.String("transition", label), zap.String("error", errorDetail))
		l.metrics.observeTransition(newStatus)

	case newStatus == StatusUp && oldStatus == StatusDown:
		closed, err := l.store.CloseLatestOpenInterval(ctx, systemID, now)
		if errors.Is(err, ErrNoOpenInterval) {
			l.logger.Error("no open downtime interval to close, data is inconsistent",
				zap.Uint("system_id", systemID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("close downtime interval for system %d: %w", systemID, err)
		}
		fields := []zap.Field{zap.Uint("system_id", systemID), zap.Uint("interval_id", closed.ID)}
		if closed.DurationMinutes != nil {
			fields = append(fields, zap.Int("duration_minutes", *closed.DurationMinutes))
		}
		l.logger.Info("system came back up", fields...)
		l.metrics.observeTransition(newStatus)
	}
	return nil
}

package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unfoldindia/unfold/internal/logging"
	"github.com/unfoldindia/unfold/internal/metrics"
	"github.com/unfoldindia/unfold/internal/store"
)

// Store is what the engine needs from storage. Both *store.DB and the
// *store.Tx handed to append hooks satisfy it.
type Store interface {
	GetPolicy(ctx context.Context, ownerID string) (*store.RetentionPolicy, error)
	DeleteRecordsOlderThan(ctx context.Context, ownerID string, cutoff time.Time) (int64, error)
}

// SweepStore additionally enumerates policies for a full sweep.
type SweepStore interface {
	Store
	ListPolicies(ctx context.Context) ([]store.RetentionPolicy, error)
}

// Engine deletes messages older than their owner's retention period.
// It holds no per-user state; every call reads the current policy.
type Engine struct {
	log     *logrus.Entry
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a retention engine. A nil metrics gets a private registry.
func New(logger *logrus.Logger, m *metrics.Metrics) *Engine {
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		log:     logging.Component(logger, "retention"),
		metrics: m,
		now:     time.Now,
	}
}

// SetClock overrides the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Hook adapts the engine to the store's post-append hook.
func (e *Engine) Hook() store.AppendHook {
	return func(ctx context.Context, tx *store.Tx, msg *store.Message) error {
		return e.OnRecordAppended(ctx, tx, msg)
	}
}

// OnRecordAppended applies the owner's policy after a new record. The
// returned error is for the caller's rollback bookkeeping only; it must
// never fail the insert that triggered it.
func (e *Engine) OnRecordAppended(ctx context.Context, s Store, rec *store.Message) error {
	_, err := e.apply(ctx, s, rec.OwnerID, "append")
	return err
}

// Sweep applies every stored policy once. Errors for one owner are logged
// and do not stop the sweep. Returns the total number of deleted records.
func (e *Engine) Sweep(ctx context.Context, s SweepStore) (int64, error) {
	policies, err := s.ListPolicies(ctx)
	if err != nil {
		return 0, fmt.Errorf("list policies: %w", err)
	}

	var total int64
	for _, p := range policies {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := e.apply(ctx, s, p.OwnerID, "sweep")
		if err != nil {
			continue
		}
		total += n
	}
	return total, nil
}

func (e *Engine) apply(ctx context.Context, s Store, ownerID, trigger string) (int64, error) {
	logger := e.log.WithFields(logrus.Fields{"owner_id": ownerID, "trigger": trigger})

	policy, err := s.GetPolicy(ctx, ownerID)
	if err != nil {
		logger.WithError(err).Warn("retention: policy lookup failed, will retry on next trigger")
		e.metrics.RetentionRuns.WithLabelValues(trigger, "error").Inc()
		return 0, err
	}

	period := KeepForever
	if policy != nil {
		p, ok := ParsePeriod(policy.Period)
		if !ok {
			logger.WithField("period", policy.Period).Warn("retention: unrecognized policy value, keeping all records")
			e.metrics.RetentionRuns.WithLabelValues(trigger, "unrecognized").Inc()
			return 0, nil
		}
		period = p
	}

	cutoff, ok := period.Cutoff(e.now())
	if !ok {
		e.metrics.RetentionRuns.WithLabelValues(trigger, "keep").Inc()
		return 0, nil
	}

	deleted, err := s.DeleteRecordsOlderThan(ctx, ownerID, cutoff)
	if err != nil {
		logger.WithError(err).Warn("retention: cleanup failed, will retry on next trigger")
		e.metrics.RetentionRuns.WithLabelValues(trigger, "error").Inc()
		return 0, err
	}

	e.metrics.RetentionRuns.WithLabelValues(trigger, "applied").Inc()
	e.metrics.RetentionDeleted.WithLabelValues(string(period)).Add(float64(deleted))

	entry := logger.WithFields(logrus.Fields{
		"period":  period,
		"cutoff":  cutoff.UTC().Format(time.RFC3339),
		"deleted": deleted,
	})
	if deleted > 0 {
		entry.Info("retention: purged expired records")
	} else {
		entry.Debug("retention: nothing to purge")
	}
	return deleted, nil
}

package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unfoldindia/unfold/internal/llm"
	"github.com/unfoldindia/unfold/internal/logging"
	"github.com/unfoldindia/unfold/internal/metrics"
	"github.com/unfoldindia/unfold/internal/store"
)

var (
	// ErrNoOwner means the caller has no resolved identity.
	ErrNoOwner = errors.New("insight: owner required")
	// ErrUnknownCategory means the category is not a known insight kind.
	ErrUnknownCategory = errors.New("insight: unknown category")
	// ErrInvalidSnapshot means the snapshot could not be serialized.
	ErrInvalidSnapshot = errors.New("insight: invalid snapshot")
)

const defaultGenerateTimeout = 30 * time.Second

// Store is the cache storage the service needs.
type Store interface {
	GetCacheEntry(ctx context.Context, ownerID, category, fingerprint string) (*store.CacheEntry, error)
	InsertCacheEntry(ctx context.Context, e *store.CacheEntry) error
}

// Outcome is what callers get back: the result plus whether it came from
// the cache.
type Outcome struct {
	Result
	Cached      bool   `json:"cached"`
	Fingerprint string `json:"-"`
}

// Service memoizes generated insights per owner, category and snapshot.
type Service struct {
	store   Store
	gen     llm.Client
	timeout time.Duration
	log     *logrus.Entry
	metrics *metrics.Metrics
}

// NewService creates an insight service. gen may be nil, in which case
// every miss resolves to the category's default result.
func NewService(s Store, gen llm.Client, logger *logrus.Logger, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		store:   s,
		gen:     gen,
		timeout: defaultGenerateTimeout,
		log:     logging.Component(logger, "insight"),
		metrics: m,
	}
}

// SetTimeout bounds each generator call.
func (s *Service) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// GetOrGenerate returns the stored insight for this exact snapshot, or
// generates, stores and returns a new one. Generator and cache failures
// degrade to a default result; only a missing owner, an unknown category
// or an unserializable snapshot are returned as errors.
func (s *Service) GetOrGenerate(ctx context.Context, ownerID string, category Category, snapshot map[string]any) (*Outcome, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	k, ok := kinds[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	if snapshot == nil {
		return nil, fmt.Errorf("%w: snapshot is null", ErrInvalidSnapshot)
	}
	canonical, err := Canonicalize(snapshot)
	if err != nil {
		return nil, err
	}
	fp := Fingerprint(canonical, category)
	logger := s.log.WithFields(logrus.Fields{"owner_id": ownerID, "category": category, "fingerprint": fp[:12]})

	entry, err := s.store.GetCacheEntry(ctx, ownerID, string(category), fp)
	if err != nil {
		logger.WithError(err).Warn("insight: cache lookup failed, treating as miss")
	}
	if entry != nil {
		s.metrics.InsightLookups.WithLabelValues(string(category), "hit").Inc()
		return &Outcome{Result: decodeStored(entry.ResultPayload), Cached: true, Fingerprint: fp}, nil
	}
	s.metrics.InsightLookups.WithLabelValues(string(category), "miss").Inc()

	var normalized map[string]any
	if err := json.Unmarshal(canonical, &normalized); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	result := s.generate(ctx, logger, k, normalized)

	s.persist(ctx, logger, ownerID, category, fp, result)
	return &Outcome{Result: result, Cached: false, Fingerprint: fp}, nil
}

func (s *Service) generate(ctx context.Context, logger *logrus.Entry, k kind, snapshot map[string]any) Result {
	if s.gen == nil {
		logger.Warn("insight: no generator configured, using default result")
		s.metrics.InsightFallbacks.WithLabelValues("generator").Inc()
		return k.fallback
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.gen.Complete(genCtx, k.request(snapshot))
	s.metrics.GeneratorLatency.Observe(time.Since(start).Seconds())
	if err == nil && resp == nil {
		err = errors.New("empty generator response")
	}
	if err != nil {
		logger.WithError(err).Warn("insight: generator unavailable, using default result")
		s.metrics.InsightFallbacks.WithLabelValues("generator").Inc()
		return k.fallback
	}

	result, err := parseResult(resp.Content)
	if err != nil {
		logger.WithError(err).WithField("raw", resp.Content).Warn("insight: malformed generator response, using default result")
		s.metrics.InsightFallbacks.WithLabelValues("parse").Inc()
		return k.fallback
	}
	return result
}

// persist stores the result. Losing a write only costs a regeneration on
// the next miss, so failures are logged and counted, not returned.
func (s *Service) persist(ctx context.Context, logger *logrus.Entry, ownerID string, category Category, fp string, result Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		logger.WithError(err).Error("insight: marshal result")
		s.metrics.InsightPersist.WithLabelValues("error").Inc()
		return
	}

	err = s.store.InsertCacheEntry(ctx, &store.CacheEntry{
		OwnerID:       ownerID,
		Category:      string(category),
		Fingerprint:   fp,
		ResultPayload: string(payload),
	})
	switch {
	case err == nil:
		s.metrics.InsightPersist.WithLabelValues("stored").Inc()
	case errors.Is(err, store.ErrConflict):
		logger.Debug("insight: concurrent request stored this fingerprint first")
		s.metrics.InsightPersist.WithLabelValues("conflict").Inc()
	default:
		logger.WithError(err).Warn("insight: cache write failed, result still returned")
		s.metrics.InsightPersist.WithLabelValues("error").Inc()
	}
}

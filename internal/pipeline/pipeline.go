package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/civic-risk-service/internal/domain"
	"github.com/couchcryptid/civic-risk-service/internal/observability"
	"github.com/google/uuid"
)

const publishTimeout = 5 * time.Second

// SnapshotPublisher ships a finished snapshot to a downstream consumer.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap domain.RiskSnapshot) error
}

// Aggregator runs collect, score and publish to produce a RiskSnapshot.
type Aggregator struct {
	collector *Collector
	city      string
	publisher SnapshotPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	last      atomic.Pointer[domain.RiskSnapshot]
}

// NewAggregator creates an Aggregator. Pass a nil publisher to disable
// snapshot publishing and nil metrics to skip instrumentation.
func NewAggregator(c *Collector, city string, publisher SnapshotPublisher, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		collector: c,
		city:      city,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// Snapshot collects every domain and scores the results into a new snapshot.
// Source failures never produce an error; the only error is the caller's
// context ending mid-collection, in which case the partial snapshot is still
// returned but should not be cached.
func (a *Aggregator) Snapshot(ctx context.Context) (domain.RiskSnapshot, error) {
	start := time.Now()
	results := a.collector.Collect(ctx)

	snap := domain.Score(results, a.city, domain.Now())
	snap.ID = uuid.NewString()

	unavailable := snap.UnavailableDomains()
	if a.metrics != nil {
		a.metrics.SnapshotsProduced.Inc()
		a.metrics.CompositeScore.Set(float64(snap.CompositeScore))
		a.metrics.DomainsUnavailable.Set(float64(len(unavailable)))
	}
	a.logger.Info("snapshot computed",
		"snapshot_id", snap.ID,
		"composite", snap.CompositeScore,
		"label", snap.CompositeLabel,
		"unavailable", unavailable,
		"duration", time.Since(start),
	)

	if err := ctx.Err(); err != nil {
		return snap, err
	}

	a.last.Store(&snap)
	a.publish(ctx, snap)
	return snap, nil
}

// Fetch runs the single source for id.
func (a *Aggregator) Fetch(ctx context.Context, id domain.DomainID) (domain.DomainResult, error) {
	return a.collector.Run(ctx, id)
}

// Last returns the most recently computed snapshot.
func (a *Aggregator) Last() (domain.RiskSnapshot, bool) {
	p := a.last.Load()
	if p == nil {
		return domain.RiskSnapshot{}, false
	}
	return *p, true
}

// CheckReadiness reports not ready only when the latest snapshot had every
// domain unavailable. Before the first snapshot the service is ready; sources
// are fetched on demand.
func (a *Aggregator) CheckReadiness(_ context.Context) error {
	snap, ok := a.Last()
	if !ok {
		return nil
	}
	if len(snap.UnavailableDomains()) == len(domain.Domains) {
		return errors.New("every source was unavailable in the latest snapshot")
	}
	return nil
}

func (a *Aggregator) publish(ctx context.Context, snap domain.RiskSnapshot) {
	if a.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := a.publisher.Publish(ctx, snap); err != nil {
		if a.metrics != nil {
			a.metrics.SnapshotPublishErrors.Inc()
		}
		a.logger.Error("publish snapshot failed", "snapshot_id", snap.ID, "error", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/civic-risk-service/internal/domain"
	"github.com/couchcryptid/civic-risk-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// DefaultSourceTimeout bounds a single upstream fetch.
const DefaultSourceTimeout = 15 * time.Second

// ErrUnknownDomain is returned by Run for a domain with no registered source.
var ErrUnknownDomain = errors.New("no source registered for domain")

// FetchFunc retrieves one domain's normalized payload.
type FetchFunc func(ctx context.Context) (domain.Payload, error)

// Source binds a domain to the adapter call that produces it.
type Source struct {
	Domain domain.DomainID
	Name   string
	Fetch  FetchFunc
}

// Collector fans out to every registered source concurrently and waits for
// all of them to settle. A failed, slow or panicking source is recorded as an
// unavailable result and never affects the others.
type Collector struct {
	sources []Source
	byID    map[domain.DomainID]Source
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCollector creates a Collector over the given sources. A non-positive
// timeout uses DefaultSourceTimeout.
func NewCollector(sources []Source, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Collector {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	byID := make(map[domain.DomainID]Source, len(sources))
	for _, s := range sources {
		byID[s.Domain] = s
	}
	return &Collector{
		sources: sources,
		byID:    byID,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Sources returns the registered sources in registration order.
func (c *Collector) Sources() []Source {
	return c.sources
}

// Collect runs every source and returns one result per domain in
// domain.Domains. Domains without a registered source are reported as not
// collected. Collect returns only after every branch has settled.
func (c *Collector) Collect(ctx context.Context) map[domain.DomainID]domain.DomainResult {
	results := make([]domain.DomainResult, len(c.sources))

	// No derived context: one branch failing must not cancel its siblings.
	var g errgroup.Group
	for i, src := range c.sources {
		g.Go(func() error {
			results[i] = c.runSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[domain.DomainID]domain.DomainResult, len(domain.Domains))
	for _, r := range results {
		out[r.Domain()] = r
	}
	for _, id := range domain.Domains {
		if _, ok := out[id]; !ok {
			out[id] = domain.Unavailable(id, domain.ErrNotCollected, domain.Now())
		}
	}
	return out
}

// Run executes the single source registered for id with the same timeout and
// failure isolation as Collect.
func (c *Collector) Run(ctx context.Context, id domain.DomainID) (domain.DomainResult, error) {
	src, ok := c.byID[id]
	if !ok {
		return domain.DomainResult{}, fmt.Errorf("%w: %s", ErrUnknownDomain, id)
	}
	return c.runSource(ctx, src), nil
}

type fetchOutcome struct {
	payload domain.Payload
	err     error
}

func (c *Collector) runSource(ctx context.Context, src Source) domain.DomainResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("source panicked: %v", r)}
			}
		}()
		p, err := src.Fetch(ctx)
		done <- fetchOutcome{payload: p, err: err}
	}()

	// A fetch that ignores its context still cannot hold the batch past the deadline.
	var out fetchOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = fetchOutcome{err: ctx.Err()}
	}

	elapsed := time.Since(start)
	result := c.settle(src, out)
	c.observe(src, result, out.err, elapsed)
	return result
}

func (c *Collector) settle(src Source, out fetchOutcome) domain.DomainResult {
	now := domain.Now()
	switch {
	case out.err != nil:
		return domain.Unavailable(src.Domain, fmt.Errorf("%s: %w", src.Name, out.err), now)
	case out.payload == nil:
		return domain.Unavailable(src.Domain, fmt.Errorf("%s: %w", src.Name, domain.ErrNoPayload), now)
	case out.payload.Domain() != src.Domain:
		return domain.Unavailable(src.Domain, fmt.Errorf("%s: returned %s payload", src.Name, out.payload.Domain()), now)
	default:
		return domain.NewResult(out.payload, now)
	}
}

func (c *Collector) observe(src Source, result domain.DomainResult, err error, elapsed time.Duration) {
	outcome := "success"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case !result.Available():
		outcome = "error"
	}

	if c.metrics != nil {
		c.metrics.SourceFetches.WithLabelValues(string(src.Domain), outcome).Inc()
		c.metrics.SourceFetchDuration.WithLabelValues(string(src.Domain)).Observe(elapsed.Seconds())
	}
	if !result.Available() {
		c.logger.Warn("source unavailable",
			"domain", src.Domain,
			"source", src.Name,
			"outcome", outcome,
			"error", result.Error(),
			"elapsed", elapsed,
		)
	}
}

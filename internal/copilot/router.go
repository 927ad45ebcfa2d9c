package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/civic-risk-service/internal/domain"
	"github.com/couchcryptid/civic-risk-service/internal/observability"
)

// maxContextBytes bounds the serialized snapshot embedded in a prompt.
const maxContextBytes = 12000

var (
	// ErrModelNotConfigured means no model credential was supplied. It is an
	// expected condition and always routes to the fallback answer.
	ErrModelNotConfigured = errors.New("language model not configured")

	// ErrRateLimited means the outbound model budget was exhausted.
	ErrRateLimited = errors.New("language model rate limit reached")
)

// Model generates free text for a prompt.
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options tunes a Router.
type Options struct {
	Timeout    time.Duration
	RPS        float64
	Burst      int
	Production bool
}

// Router classifies questions and answers them from a snapshot.
type Router struct {
	model   Model
	limiter *rate.Limiter
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRouter creates a Router. model may be nil, in which case every answer is
// a fallback.
func NewRouter(model Model, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Router {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 1
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if metrics != nil {
		enabled := 0.0
		if model != nil {
			enabled = 1
		}
		metrics.ModelEnabled.Set(enabled)
	}
	return &Router{
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// ModelConfigured reports whether answers can be model-generated.
func (r *Router) ModelConfigured() bool { return r.model != nil }

// Answer routes question against snap. It never fails: any model problem
// yields a templated answer flagged as a fallback.
func (r *Router) Answer(ctx context.Context, question string, snap domain.RiskSnapshot) domain.ChatAnswer {
	qt := Classify(question)
	sources := snap.Sources
	if sources == nil {
		sources = []string{}
	}

	text, err := r.generate(ctx, question, qt, snap)
	if err == nil {
		r.recordAnswer(qt, "model")
		return domain.ChatAnswer{
			QuestionType: qt,
			Answer:       text,
			Model:        r.model.Name(),
			Sources:      sources,
		}
	}

	if !errors.Is(err, ErrModelNotConfigured) {
		r.logger.Warn("copilot falling back to template", "question_type", qt, "error", err)
	}
	r.recordAnswer(qt, "fallback")

	answer := domain.ChatAnswer{
		QuestionType: qt,
		Answer:       FallbackAnswer(qt, snap),
		Fallback:     true,
		Sources:      sources,
	}
	if !r.opts.Production {
		answer.Diagnostic = err.Error()
	}
	return answer
}

func (r *Router) recordAnswer(qt domain.QuestionType, provenance string) {
	if r.metrics != nil {
		r.metrics.ChatAnswers.WithLabelValues(string(qt), provenance).Inc()
	}
}

func (r *Router) generate(ctx context.Context, question string, qt domain.QuestionType, snap domain.RiskSnapshot) (string, error) {
	if r.model == nil {
		return "", ErrModelNotConfigured
	}
	if !r.limiter.Allow() {
		return "", ErrRateLimited
	}

	prompt, err := BuildPrompt(question, qt, snap)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	text, err := r.model.Generate(ctx, prompt)
	if r.metrics != nil {
		r.metrics.ModelDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.model.Name(), err)
	}
	if text == "" {
		return "", fmt.Errorf("%s: empty answer", r.model.Name())
	}
	return text, nil
}

// BuildPrompt embeds the question, its type and the serialized snapshot.
func BuildPrompt(question string, qt domain.QuestionType, snap domain.RiskSnapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot context: %w", err)
	}
	return fmt.Sprintf("You are Civic Risk Copilot for %s.\nUser question: %s\nQuestion type: %s\nData context (JSON): %s\n\n"+
		"Respond in clear, practical language for residents. Include safety-first suggestions when relevant.",
		snap.City, question, qt, truncate(data, maxContextBytes)), nil
}

// truncate cuts b to at most n bytes without splitting a UTF-8 sequence.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n])
}

// ContextSummary is the compact view of the snapshot a chat answer was drawn from.
type ContextSummary struct {
	SnapshotID         string            `json:"snapshotId"`
	CompositeScore     int               `json:"compositeScore"`
	OverallRisk        domain.Severity   `json:"overallRisk"`
	UnavailableDomains []domain.DomainID `json:"unavailableDomains"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// Summarize builds the ContextSummary for snap.
func Summarize(snap domain.RiskSnapshot) ContextSummary {
	unavailable := snap.UnavailableDomains()
	if unavailable == nil {
		unavailable = []domain.DomainID{}
	}
	return ContextSummary{
		SnapshotID:         snap.ID,
		CompositeScore:     snap.CompositeScore,
		OverallRisk:        snap.CompositeLabel,
		UnavailableDomains: unavailable,
		UpdatedAt:          snap.GeneratedAt,
	}
}

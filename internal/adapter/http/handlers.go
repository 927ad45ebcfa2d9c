package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/civic-risk-service/internal/cache"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

const dashboardKey = "dashboard"

// domainRoutes maps single-domain endpoints to the domain they serve.
var domainRoutes = map[string]domain.DomainID{
	"/api/weather":     domain.DomainWeather,
	"/api/alerts":      domain.DomainAlerts,
	"/api/air-quality": domain.DomainAirQuality,
	"/api/flood":       domain.DomainFlood,
	"/api/seismic":     domain.DomainSeismic,
	"/api/incidents":   domain.DomainIncidents,
}

// unavailableResult carries a failed fetch through cache.Wrap so it is
// returned to the caller but never stored.
type unavailableResult struct {
	result domain.DomainResult
}

func (e *unavailableResult) Error() string { return e.result.Error() }

type healthBody struct {
	Status   string      `json:"status"`
	City     string      `json:"city"`
	Time     time.Time   `json:"time"`
	Cache    cache.Stats `json:"cache"`
	Features Features    `json:"features"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, healthBody{
		Status:   "ok",
		City:     s.opts.City,
		Time:     domain.Now(),
		Cache:    s.cache.Stats(),
		Features: s.opts.Features,
	})
}

// domainResult returns the cached result for id, fetching it on a miss.
// Unavailable results are returned but not cached.
func (s *Server) domainResult(ctx context.Context, id domain.DomainID) (domain.DomainResult, error) {
	r, err := cache.Wrap(ctx, s.cache, "domain:"+string(id), 0, func(ctx context.Context) (domain.DomainResult, error) {
		r, err := s.agg.Fetch(ctx, id)
		if err != nil {
			r = domain.Unavailable(id, err, domain.Now())
		}
		if !r.Available() {
			return r, &unavailableResult{result: r}
		}
		return r, nil
	})
	var unavailable *unavailableResult
	if errors.As(err, &unavailable) {
		return unavailable.result, nil
	}
	return r, err
}

func (s *Server) handleDomain(id domain.DomainID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.domainResult(r.Context(), id)
		if err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, errRequestEnded)
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, result)
	}
}

type newsSection int

const (
	newsStories newsSection = iota
	cityAnnouncements
)

type sectionBody struct {
	Domain    domain.DomainID `json:"domain"`
	Available bool            `json:"available"`
	Data      any             `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

type storiesData struct {
	Source  string               `json:"source"`
	Stories []domain.Story       `json:"stories"`
	Errors  []domain.ScrapeError `json:"errors,omitempty"`
}

type announcementsData struct {
	Source        string                `json:"source"`
	Announcements []domain.Announcement `json:"announcements"`
}

// handleNews serves one half of the shared news payload.
func (s *Server) handleNews(section newsSection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.domainResult(r.Context(), domain.DomainNews)
		if err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, errRequestEnded)
			return
		}

		body := sectionBody{
			Domain:    result.Domain(),
			Available: result.Available(),
			Error:     result.Error(),
			FetchedAt: result.FetchedAt(),
		}
		if p, ok := result.News(); ok {
			switch section {
			case newsStories:
				body.Data = storiesData{Source: p.Source, Stories: nonNil(p.Stories), Errors: p.Errors}
			case cityAnnouncements:
				body.Data = announcementsData{Source: p.Source, Announcements: nonNil(p.Announcements)}
			}
		}
		sharedobs.WriteJSON(w, http.StatusOK, body)
	}
}

// dashboard returns the cached snapshot, computing one on a miss. A snapshot
// cut short by the caller's context is not cached.
func (s *Server) dashboard(ctx context.Context) (domain.RiskSnapshot, error) {
	return cache.Wrap(ctx, s.cache, dashboardKey, 0, s.agg.Snapshot)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errRequestEnded)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

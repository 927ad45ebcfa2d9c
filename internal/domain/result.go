package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// DomainID names one hazard or service category.
type DomainID string

const (
	DomainWeather    DomainID = "weather"
	DomainAlerts     DomainID = "alerts"
	DomainAirQuality DomainID = "air-quality"
	DomainFlood      DomainID = "flood"
	DomainSeismic    DomainID = "seismic"
	DomainIncidents  DomainID = "incidents"
	DomainNews       DomainID = "news"
)

// Domains lists every domain in dashboard order.
var Domains = []DomainID{
	DomainWeather,
	DomainAlerts,
	DomainAirQuality,
	DomainFlood,
	DomainSeismic,
	DomainIncidents,
	DomainNews,
}

// Payload is the normalized shape produced by one source adapter. The set of
// implementations is closed: one struct per domain in this package.
type Payload interface {
	Domain() DomainID
	sealed()
}

// ErrNoPayload is recorded when an adapter reports success without data.
var ErrNoPayload = errors.New("source returned no payload")

// DomainResult is the outcome of fetching one domain. Build it with NewResult
// or Unavailable so that Available, Payload and Error stay consistent.
type DomainResult struct {
	domain    DomainID
	available bool
	payload   Payload
	err       string
	fetchedAt time.Time
}

// NewResult wraps a successful adapter payload.
func NewResult(p Payload, at time.Time) DomainResult {
	return DomainResult{
		domain:    p.Domain(),
		available: true,
		payload:   p,
		fetchedAt: at,
	}
}

// Unavailable records a failed fetch for the given domain.
func Unavailable(id DomainID, err error, at time.Time) DomainResult {
	if err == nil {
		err = ErrNoPayload
	}
	return DomainResult{
		domain:    id,
		err:       err.Error(),
		fetchedAt: at,
	}
}

func (r DomainResult) Domain() DomainID     { return r.domain }
func (r DomainResult) Available() bool      { return r.available }
func (r DomainResult) Payload() Payload     { return r.payload }
func (r DomainResult) Error() string        { return r.err }
func (r DomainResult) FetchedAt() time.Time { return r.fetchedAt }

// Weather returns the weather payload when the result carries one.
func (r DomainResult) Weather() (*WeatherPayload, bool) {
	p, ok := r.payload.(*WeatherPayload)
	return p, ok && p != nil
}

// Alerts returns the alerts payload when the result carries one.
func (r DomainResult) Alerts() (*AlertsPayload, bool) {
	p, ok := r.payload.(*AlertsPayload)
	return p, ok && p != nil
}

// AirQuality returns the air-quality payload when the result carries one.
func (r DomainResult) AirQuality() (*AirQualityPayload, bool) {
	p, ok := r.payload.(*AirQualityPayload)
	return p, ok && p != nil
}

// Flood returns the flood payload when the result carries one.
func (r DomainResult) Flood() (*FloodPayload, bool) {
	p, ok := r.payload.(*FloodPayload)
	return p, ok && p != nil
}

// Seismic returns the seismic payload when the result carries one.
func (r DomainResult) Seismic() (*SeismicPayload, bool) {
	p, ok := r.payload.(*SeismicPayload)
	return p, ok && p != nil
}

// Incidents returns the incidents payload when the result carries one.
func (r DomainResult) Incidents() (*IncidentsPayload, bool) {
	p, ok := r.payload.(*IncidentsPayload)
	return p, ok && p != nil
}

// News returns the news payload when the result carries one.
func (r DomainResult) News() (*NewsPayload, bool) {
	p, ok := r.payload.(*NewsPayload)
	return p, ok && p != nil
}

type resultJSON struct {
	Domain    DomainID        `json:"domain"`
	Available bool            `json:"available"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// MarshalJSON renders the result as {domain, available, data, error, fetchedAt}.
func (r DomainResult) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Domain:    r.domain,
		Available: r.available,
		Error:     r.err,
		FetchedAt: r.fetchedAt,
	}
	if r.payload != nil {
		data, err := json.Marshal(r.payload)
		if err != nil {
			return nil, err
		}
		out.Data = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the envelope written by MarshalJSON, picking the payload
// type from the domain field.
func (r *DomainResult) UnmarshalJSON(b []byte) error {
	var in resultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = DomainResult{domain: in.Domain, err: in.Error, fetchedAt: in.FetchedAt}
	if !in.Available {
		if r.err == "" {
			r.err = ErrNoPayload.Error()
		}
		return nil
	}
	p, err := newPayload(in.Domain)
	if err != nil {
		return err
	}
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, p); err != nil {
			return err
		}
	}
	r.available = true
	r.payload = p
	return nil
}

package domain

import "time"

// Severity is the qualitative risk label shared by factors and the composite.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeveritySevere   Severity = "severe"
	SeverityUnknown  Severity = "unknown"
)

// FactorID names one scored risk factor. Several factors are derived from a
// domain that carries a different name (heatwave comes from weather).
type FactorID string

const (
	FactorAlerts          FactorID = "alerts"
	FactorFlood           FactorID = "flood"
	FactorHeatwave        FactorID = "heatwave"
	FactorAirQuality      FactorID = "air-quality"
	FactorSeismic         FactorID = "seismic"
	FactorCommunitySafety FactorID = "community-safety"
)

// RiskFactor is one domain's contribution to the composite score.
type RiskFactor struct {
	Factor       FactorID `json:"factor"`
	Domain       DomainID `json:"domain"`
	Score        float64  `json:"score"`
	Label        Severity `json:"label"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
	Summary      string   `json:"summary"`
	Available    bool     `json:"available"`
}

// RiskSnapshot is the scored dashboard state at one point in time. A refresh
// produces a new snapshot; nothing mutates an existing one.
type RiskSnapshot struct {
	ID             string                    `json:"id"`
	City           string                    `json:"city"`
	CompositeScore int                       `json:"compositeScore"`
	CompositeLabel Severity                  `json:"overallRisk"`
	Factors        []RiskFactor              `json:"factors"`
	Results        map[DomainID]DomainResult `json:"domains"`
	GeneratedAt    time.Time                 `json:"updatedAt"`
	Sources        []string                  `json:"sources"`
}

// Result returns the stored result for id, or an unavailable marker when the
// snapshot has none.
func (s RiskSnapshot) Result(id DomainID) DomainResult {
	if r, ok := s.Results[id]; ok {
		return r
	}
	return Unavailable(id, ErrNotCollected, s.GeneratedAt)
}

// Factor returns the named factor.
func (s RiskSnapshot) Factor(id FactorID) (RiskFactor, bool) {
	for _, f := range s.Factors {
		if f.Factor == id {
			return f, true
		}
	}
	return RiskFactor{}, false
}

// UnavailableDomains lists the domains whose fetch failed, in dashboard order.
func (s RiskSnapshot) UnavailableDomains() []DomainID {
	var out []DomainID
	for _, id := range Domains {
		if !s.Result(id).Available() {
			out = append(out, id)
		}
	}
	return out
}

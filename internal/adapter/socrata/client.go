// Package socrata discovers and reads the police incident dataset published on
// the municipality's Socrata open-data portal.
package socrata

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/civic-risk-service/internal/config"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

// Source is the attribution name for incident data.
const Source = "Municipal Open Data (Socrata)"

const rowLimit = 25

var (
	highSeverity     = regexp.MustCompile(`homicide|shooting|armed|assault|robbery|violent|weapon`)
	moderateSeverity = regexp.MustCompile(`burglary|theft|break|vandalism|battery|drugs`)
)

// Client implements the incidents source.
type Client struct {
	http       *upstream.Client
	catalogURL string
	portalURL  string
	place      config.Municipality
}

// NewClient creates a Socrata client for the municipality's portal.
func NewClient(hc *upstream.Client, place config.Municipality) *Client {
	return &Client{
		http:       hc,
		catalogURL: "https://api.us.socrata.com/api/catalog/v1",
		portalURL:  "https://" + place.SocrataDomain,
		place:      place,
	}
}

// Incidents returns the latest rows of the best-matching incident dataset. A
// portal with no matching dataset yields an empty, noted payload.
func (c *Client) Incidents(ctx context.Context) (*domain.IncidentsPayload, error) {
	dataset, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}
	if dataset == nil {
		return &domain.IncidentsPayload{
			Source:    Source,
			Incidents: []domain.Incident{},
			Summary:   map[string]int{},
			Note:      "No incident dataset discovered at runtime.",
		}, nil
	}

	params := url.Values{
		"$limit": {fmt.Sprint(rowLimit)},
		"$order": {":updated_at DESC"},
	}
	var rows []map[string]any
	rowsURL := fmt.Sprintf("%s/resource/%s.json", c.portalURL, url.PathEscape(dataset.ID))
	if err := c.http.GetJSON(ctx, rowsURL, params, nil, &rows); err != nil {
		return nil, fmt.Errorf("socrata rows: %w", err)
	}

	payload := &domain.IncidentsPayload{
		Source:    Source,
		Dataset:   dataset.Name,
		Incidents: make([]domain.Incident, 0, len(rows)),
		Summary:   map[string]int{},
	}
	for i, row := range rows {
		inc := c.normalize(row, i)
		payload.Incidents = append(payload.Incidents, inc)
		payload.Summary[inc.Severity]++
	}
	return payload, nil
}

type dataset struct {
	ID   string
	Name string
}

func (c *Client) discover(ctx context.Context) (*dataset, error) {
	params := url.Values{
		"search_context": {c.place.SocrataDomain},
		"q":              {"police incident crime"},
		"limit":          {"20"},
	}
	var resp catalogResponse
	if err := c.http.GetJSON(ctx, c.catalogURL, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("socrata catalog: %w", err)
	}

	type ranked struct {
		ds    dataset
		score int
	}
	var candidates []ranked
	for _, r := range resp.Results {
		if r.Resource.ID == "" {
			continue
		}
		candidates = append(candidates, ranked{
			ds:    dataset{ID: r.Resource.ID, Name: r.Resource.Name},
			score: relevance(r.Resource.Name + " " + r.Resource.Description),
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	return &candidates[0].ds, nil
}

func relevance(text string) int {
	text = strings.ToLower(text)
	score := 0
	if strings.Contains(text, "police") {
		score += 3
	}
	if strings.Contains(text, "incident") {
		score += 3
	}
	if strings.Contains(text, "crime") {
		score += 2
	}
	if strings.Contains(text, "call") {
		score++
	}
	return score
}

func (c *Client) normalize(row map[string]any, index int) domain.Incident {
	kind := pick(row, "offense", "offense_description", "incident_type", "ucr_desc", "description", "title")
	if kind == "" {
		kind = "Incident"
	}
	id := pick(row, "incident_number", "case_number", "id")
	if id == "" {
		id = fmt.Sprintf("inc-%d", index+1)
	}
	location := pick(row, "block_address", "address", "location", "street", "intersection", "beat")
	if location == "" {
		location = c.place.Name + " area"
	}
	return domain.Incident{
		ID:       id,
		Type:     kind,
		Severity: string(InferSeverity(kind)),
		Location: location,
		Time:     pick(row, "incident_date", "occurred_on_date", "report_date", "date", "created_at", ":created_at"),
		Details:  pick(row, "description", "narrative", "notes"),
	}
}

// InferSeverity classifies an incident by its offense text.
func InferSeverity(offense string) domain.Severity {
	t := strings.ToLower(offense)
	switch {
	case highSeverity.MatchString(t):
		return domain.SeverityHigh
	case moderateSeverity.MatchString(t):
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}

// pick returns the first non-empty scalar among the named columns. Socrata
// location columns are objects and are skipped.
func pick(row map[string]any, names ...string) string {
	for _, n := range names {
		switch v := row[n].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprint(v)
		case bool:
			return fmt.Sprint(v)
		}
	}
	return ""
}

type catalogResponse struct {
	Results []struct {
		Resource struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"resource"`
	} `json:"results"`
}

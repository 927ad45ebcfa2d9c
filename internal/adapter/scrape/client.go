// Package scrape fetches the city website and local news front pages, through
// the Bright Data unlocker when a key is configured, and extracts headlines.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/civic-risk-service/internal/config"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

// Source is the attribution name for the combined city and news payload.
const Source = "City website and local news"

// Fetch modes recorded on each story.
const (
	ModeBrightData = "brightdata"
	ModeDirect     = "direct"
)

const (
	cityLimit       = 10
	perTargetLimit  = 8
	maxStories      = 12
	cityCategory    = "city-announcement"
	cityStoryPrefix = "city"
)

var errEmptyPage = errors.New("empty page")

var nonSlug = regexp.MustCompile(`\s+`)

// Page is fetched HTML and how it was obtained.
type Page struct {
	HTML string
	Mode string
}

// Client fetches pages directly or through Bright Data.
type Client struct {
	http          *upstream.Client
	brightDataKey string
	brightDataURL string
	logger        *slog.Logger
}

// NewClient creates a scrape client. An empty key disables Bright Data.
func NewClient(hc *upstream.Client, brightDataKey string, logger *slog.Logger) *Client {
	return &Client{
		http:          hc,
		brightDataKey: brightDataKey,
		brightDataURL: "https://api.brightdata.com/request",
		logger:        logger,
	}
}

// Fetch returns the HTML at target. Bright Data is tried first (GET, then
// POST) when configured; any failure falls back to a direct request.
func (c *Client) Fetch(ctx context.Context, target string) (Page, error) {
	if c.brightDataKey != "" {
		html, err := c.viaBrightData(ctx, target)
		if err == nil {
			return Page{HTML: html, Mode: ModeBrightData}, nil
		}
		c.logger.Warn("bright data fetch failed, falling back to direct", "url", target, "error", err)
	}

	body, err := c.http.Get(ctx, target, nil, http.Header{"Accept": {"text/html"}})
	if err != nil {
		return Page{Mode: ModeDirect}, err
	}
	if len(body) == 0 {
		return Page{Mode: ModeDirect}, errEmptyPage
	}
	return Page{HTML: string(body), Mode: ModeDirect}, nil
}

func (c *Client) viaBrightData(ctx context.Context, target string) (string, error) {
	headers := http.Header{
		"Authorization": {"Bearer " + c.brightDataKey},
		"Accept":        {"text/html,application/json"},
	}

	body, err := c.http.Get(ctx, c.brightDataURL, url.Values{"url": {target}}, headers)
	if err == nil {
		if html := unwrapBrightData(body); html != "" {
			return html, nil
		}
		err = errEmptyPage
	}

	body, postErr := c.http.Post(ctx, c.brightDataURL, headers, map[string]string{"url": target, "format": "raw"})
	if postErr != nil {
		return "", fmt.Errorf("bright data: %w", errors.Join(err, postErr))
	}
	if html := unwrapBrightData(body); html != "" {
		return html, nil
	}
	return "", fmt.Errorf("bright data: %w", errEmptyPage)
}

// unwrapBrightData accepts either raw HTML or a JSON envelope carrying the
// page in "body" or "result".
func unwrapBrightData(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var env struct {
		Body   string `json:"body"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return trimmed
	}
	if env.Body != "" {
		return env.Body
	}
	return env.Result
}

// CityAnnouncements returns headlines from the city website.
func (c *Client) CityAnnouncements(ctx context.Context, site string) ([]domain.Announcement, error) {
	page, err := c.Fetch(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("city site: %w", err)
	}
	headlines := ExtractHeadlines(page.HTML, site, cityLimit, nil)
	out := make([]domain.Announcement, 0, len(headlines))
	for i, h := range headlines {
		out = append(out, domain.Announcement{
			ID:       fmt.Sprintf("%s-%d", cityStoryPrefix, i+1),
			Title:    h.Title,
			Link:     h.URL,
			Category: cityCategory,
		})
	}
	return out, nil
}

// LocalNews scrapes every target concurrently and keeps risk-related stories,
// at most maxStories in target order. Targets that fail are reported in the
// returned errors rather than failing the batch.
func (c *Client) LocalNews(ctx context.Context, targets []config.NewsTarget, keywords []string) ([]domain.Story, []domain.ScrapeError) {
	perTarget := make([][]domain.Story, len(targets))
	failures := make([]*domain.ScrapeError, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := c.Fetch(ctx, target.URL)
			if err != nil {
				failures[i] = &domain.ScrapeError{Source: target.Name, Error: err.Error()}
				return
			}
			slug := strings.ToLower(nonSlug.ReplaceAllString(target.Name, "-"))
			for j, h := range ExtractHeadlines(page.HTML, target.URL, perTargetLimit, keywords) {
				perTarget[i] = append(perTarget[i], domain.Story{
					ID:     fmt.Sprintf("%s-%d", slug, j+1),
					Source: target.Name,
					Title:  h.Title,
					Link:   h.URL,
					Mode:   page.Mode,
				})
			}
		}()
	}
	wg.Wait()

	stories := []domain.Story{}
	var errs []domain.ScrapeError
	for i := range targets {
		if failures[i] != nil {
			errs = append(errs, *failures[i])
			continue
		}
		stories = append(stories, perTarget[i]...)
	}
	if len(stories) > maxStories {
		stories = stories[:maxStories]
	}
	return stories, errs
}

// News combines city announcements with local news stories. It fails only when
// the city site and every news target failed.
func (c *Client) News(ctx context.Context, place config.Municipality) (*domain.NewsPayload, error) {
	var (
		wg            sync.WaitGroup
		announcements []domain.Announcement
		cityErr       error
		stories       []domain.Story
		errs          []domain.ScrapeError
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		announcements, cityErr = c.CityAnnouncements(ctx, place.CitySite)
	}()
	go func() {
		defer wg.Done()
		stories, errs = c.LocalNews(ctx, place.NewsTargets, place.NewsKeywords)
	}()
	wg.Wait()

	if cityErr != nil {
		if len(errs) == len(place.NewsTargets) {
			return nil, cityErr
		}
		errs = append(errs, domain.ScrapeError{Source: place.CitySite, Error: cityErr.Error()})
		announcements = []domain.Announcement{}
	}
	return &domain.NewsPayload{
		Source:        Source,
		Announcements: announcements,
		Stories:       stories,
		Errors:        errs,
	}, nil
}

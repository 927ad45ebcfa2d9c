// Command snapshot computes one risk snapshot and prints it as JSON.
//
// Without flags it collects every live source once. With -fixture it scores a
// saved set of domain results instead, under a frozen clock, so the output is
// reproducible:
//
//	go run ./cmd/snapshot -fixture cmd/snapshot/testdata/representative.json \
//	  -at 2026-07-14T15:00:00Z -out snapshot.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/civic-risk-service/internal/adapter"
	"github.com/couchcryptid/civic-risk-service/internal/config"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
	"github.com/couchcryptid/civic-risk-service/internal/observability"
	"github.com/couchcryptid/civic-risk-service/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	fixture := flag.String("fixture", "", "score saved domain results from this JSON file instead of live sources")
	at := flag.String("at", "", "RFC3339 time to freeze the clock at when scoring a fixture")
	out := flag.String("out", "", "write the snapshot here instead of stdout")
	flag.Parse()

	if err := config.LoadEnvFiles(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var snap domain.RiskSnapshot
	if *fixture != "" {
		snap, err = scoreFixture(*fixture, *at, cfg.Municipality.Name)
	} else {
		snap, err = collectLive(cfg)
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return err
	}
	log.Printf("wrote snapshot %s: composite %d (%s), unavailable %v",
		*out, snap.CompositeScore, snap.CompositeLabel, snap.UnavailableDomains())
	return nil
}

func collectLive(cfg *config.Config) (domain.RiskSnapshot, error) {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := pipeline.NewCollector(adapter.Sources(adapter.NewClients(cfg, logger)), cfg.SourceTimeout, logger, metrics)
	agg := pipeline.NewAggregator(collector, cfg.Municipality.Name, nil, logger, metrics)
	return agg.Snapshot(ctx)
}

// fixtureFile accepts either a saved dashboard response or a bare domains map.
type fixtureFile struct {
	City    string                                  `json:"city"`
	Domains map[domain.DomainID]domain.DomainResult `json:"domains"`
}

// scoreFixture scores the results in path. The snapshot ID is derived from the
// file contents so identical inputs yield identical output.
func scoreFixture(path, at, defaultCity string) (domain.RiskSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RiskSnapshot{}, fmt.Errorf("read fixture: %w", err)
	}
	results, city, err := loadFixture(data)
	if err != nil {
		return domain.RiskSnapshot{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if city == "" {
		city = defaultCity
	}

	frozen := time.Now().UTC()
	if at != "" {
		frozen, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return domain.RiskSnapshot{}, fmt.Errorf("parse -at: %w", err)
		}
	}
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	defer domain.SetClock(nil)

	snap := domain.Score(results, city, domain.Now())
	snap.ID = uuid.NewSHA1(uuid.NameSpaceURL, data).String()
	return snap, nil
}

func loadFixture(data []byte) (map[domain.DomainID]domain.DomainResult, string, error) {
	var f fixtureFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", err
	}
	if f.Domains != nil {
		return f.Domains, f.City, nil
	}

	var bare map[domain.DomainID]domain.DomainResult
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, "", err
	}
	if len(bare) == 0 {
		return nil, "", errors.New("no domain results")
	}
	return bare, "", nil
}

package observability

import (
	"log/slog"

	"github.com/couchcryptid/civic-risk-service/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and tags
// its records with the service and city.
func NewLogger(cfg *config.Config) *slog.Logger {
	return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With(
		"service", "civic-risk",
		"city", cfg.Municipality.Name,
	)
}

package collector

import (
	"context"
	"time"

	"github.com/go-tangra/go-tangra-sbom/internal/component"
	"github.com/go-tangra/go-tangra-sbom/internal/logging"
)

var log = logging.L("collector")

// Collector produces the component inventory of one platform.
type Collector interface {
	Name() string
	// Setup prepares the collector before the first Collect.
	Setup(ctx context.Context) error
	// Collect returns components grouped OS first, then drivers, then
	// applications.
	Collect(ctx context.Context) ([]component.Component, error)
}

// parseTime parses raw with the first matching layout and returns it in
// UTC. An empty string is the zero time.
func parseTime(raw string, layouts ...string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	var firstErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, &DateTimeError{Raw: raw, Err: firstErr}
}

func phaseDone(phase string, start time.Time, count int) {
	log.Info("phase complete",
		logging.KeyPhase, phase,
		logging.KeyCount, count,
		logging.KeyDurationMs, time.Since(start).Milliseconds(),
	)
}

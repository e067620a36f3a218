//go:build darwin

package collector

import (
	"context"
	"fmt"

	"github.com/go-tangra/go-tangra-sbom/internal/config"
	"github.com/go-tangra/go-tangra-sbom/internal/runner"
)

// New returns the macOS collector, set up and ready to collect.
func New(ctx context.Context, cfg *config.Config) (Collector, error) {
	c := NewMacCollector(&runner.ExecRunner{Timeout: cfg.ToolTimeout}, cfg.Darwin.DetailLevel)
	if err := c.Setup(ctx); err != nil {
		return nil, fmt.Errorf("setup %s: %w", c.Name(), err)
	}
	return c, nil
}

//go:build windows

package collector

import (
	"context"
	"fmt"

	"github.com/go-tangra/go-tangra-sbom/internal/config"
	"github.com/go-tangra/go-tangra-sbom/internal/runner"
	"github.com/go-tangra/go-tangra-sbom/internal/uninstall"
	"github.com/go-tangra/go-tangra-sbom/internal/winapi"
)

// New returns the Windows collector, set up and ready to collect.
func New(ctx context.Context, cfg *config.Config) (Collector, error) {
	c := NewWindowsCollector(
		&runner.ExecRunner{Timeout: cfg.ToolTimeout},
		winapi.NewExtractor(),
		&uninstall.Reader{Roots: uninstall.DefaultRoots(cfg.Windows.IncludeCurrentUser)},
		cfg.Windows.VersionWorkers,
	)
	if err := c.Setup(ctx); err != nil {
		return nil, fmt.Errorf("setup %s: %w", c.Name(), err)
	}
	return c, nil
}

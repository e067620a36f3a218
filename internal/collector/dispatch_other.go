//go:build !darwin && !windows

package collector

import (
	"context"

	"github.com/go-tangra/go-tangra-sbom/internal/config"
)

// New fails on targets without a native collector.
func New(ctx context.Context, cfg *config.Config) (Collector, error) {
	return nil, ErrUnsupportedPlatform
}

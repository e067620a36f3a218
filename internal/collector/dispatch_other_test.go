//go:build !darwin && !windows

package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-tangra/go-tangra-sbom/internal/config"
)

func TestNewUnsupported(t *testing.T) {
	c, err := New(context.Background(), config.Default())

	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.EqualError(t, err, "unsupported operating system")
}

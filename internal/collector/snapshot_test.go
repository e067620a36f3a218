package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-tangra/go-tangra-sbom/internal/component"
)

type staticCollector struct {
	comps []component.Component
	err   error
}

func (s *staticCollector) Name() string                    { return "static" }
func (s *staticCollector) Setup(ctx context.Context) error { return nil }
func (s *staticCollector) Collect(ctx context.Context) ([]component.Component, error) {
	return s.comps, s.err
}

func stubHostInfo(t *testing.T, info *host.InfoStat, err error) {
	t.Helper()
	orig := hostInfo
	hostInfo = func(ctx context.Context) (*host.InfoStat, error) { return info, err }
	t.Cleanup(func() { hostInfo = orig })
}

func TestRun(t *testing.T) {
	stubHostInfo(t, &host.InfoStat{
		Hostname:        "build-01",
		Platform:        "Microsoft Windows 10 Pro",
		PlatformVersion: "10.0.19045",
		KernelVersion:   "10.0.19045 Build 19045",
	}, nil)
	c := &staticCollector{comps: []component.Component{{Kind: component.OS, Name: "Microsoft Windows"}}}

	snap, err := Run(context.Background(), c)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, snap.RunID)
	assert.False(t, snap.CollectedAt.IsZero())
	assert.Equal(t, "build-01", snap.Hostname)
	assert.Equal(t, "10.0.19045", snap.PlatformVersion)
	assert.Equal(t, "static", snap.Collector)
	require.Len(t, snap.Components, 1)
	assert.Equal(t, "Microsoft Windows", snap.Components[0].ID)
	assert.NotNil(t, snap.Components[0].Publishers)
}

func TestRunHostInfoFailure(t *testing.T) {
	stubHostInfo(t, nil, errors.New("no wmi"))

	snap, err := Run(context.Background(), &staticCollector{})

	require.NoError(t, err)
	assert.Empty(t, snap.Platform)
	assert.NotNil(t, snap.Components)
}

func TestRunCollectFailure(t *testing.T) {
	stubHostInfo(t, &host.InfoStat{}, nil)

	snap, err := Run(context.Background(), &staticCollector{err: ErrUnsupportedPlatform})

	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestRunUsesProfileHostFacts(t *testing.T) {
	stubHostInfo(t, &host.InfoStat{
		Hostname:        "analyst-laptop",
		Platform:        "ubuntu",
		PlatformVersion: "22.04",
		KernelVersion:   "6.5.0-14-generic",
	}, nil)
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfile), 0o600))
	c := NewProfileCollector(path)
	require.NoError(t, c.Setup(context.Background()))

	snap, err := Run(context.Background(), c)

	require.NoError(t, err)
	assert.Equal(t, "studio-7", snap.Hostname)
	assert.Equal(t, "darwin", snap.Platform)
	assert.Equal(t, "14.2.1", snap.PlatformVersion)
	assert.Equal(t, "23.2.0", snap.KernelVersion)
	assert.Equal(t, "macos-profile", snap.Collector)
}

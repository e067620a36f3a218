package collector

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/go-tangra/go-tangra-sbom/internal/component"
	"github.com/go-tangra/go-tangra-sbom/internal/logging"
)

// Snapshot is the inventory of one run together with host facts.
type Snapshot struct {
	RunID           uuid.UUID             `json:"run_id" yaml:"run_id"`
	CollectedAt     time.Time             `json:"collected_at" yaml:"collected_at"`
	Hostname        string                `json:"hostname" yaml:"hostname"`
	Platform        string                `json:"platform" yaml:"platform"`
	PlatformVersion string                `json:"platform_version" yaml:"platform_version"`
	KernelVersion   string                `json:"kernel_version" yaml:"kernel_version"`
	Collector       string                `json:"collector" yaml:"collector"`
	Components      []component.Component `json:"components" yaml:"components"`
}

// HostFacts identifies the machine a snapshot describes.
type HostFacts struct {
	Hostname        string
	Platform        string
	PlatformVersion string
	KernelVersion   string
}

// HostFactsProvider is implemented by collectors whose inventory comes
// from another machine. Run uses these facts instead of the local host's.
type HostFactsProvider interface {
	HostFacts() HostFacts
}

// hostInfo is swapped in tests.
var hostInfo = host.InfoWithContext

// Run collects with c and wraps the result in a Snapshot. Host facts are
// best effort and any collection error discards the whole run.
func Run(ctx context.Context, c Collector) (*Snapshot, error) {
	start := time.Now()

	comps, err := c.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	for i := range comps {
		comps[i] = component.Normalize(comps[i])
	}
	if comps == nil {
		comps = []component.Component{}
	}

	snap := &Snapshot{
		RunID:       uuid.New(),
		CollectedAt: start.UTC(),
		Collector:   c.Name(),
		Components:  comps,
	}

	var facts HostFacts
	if p, ok := c.(HostFactsProvider); ok {
		facts = p.HostFacts()
	} else {
		facts = localHostFacts(ctx)
	}
	snap.Hostname = facts.Hostname
	snap.Platform = facts.Platform
	snap.PlatformVersion = facts.PlatformVersion
	snap.KernelVersion = facts.KernelVersion

	log.Info("inventory collected",
		"collector", snap.Collector,
		logging.KeyCount, len(comps),
		logging.KeyDurationMs, time.Since(start).Milliseconds(),
	)
	return snap, nil
}

func localHostFacts(ctx context.Context) HostFacts {
	var facts HostFacts
	info, err := hostInfo(ctx)
	if err != nil {
		log.Warn("host info unavailable", logging.KeyError, err)
	}
	if info != nil {
		facts = HostFacts{
			Hostname:        info.Hostname,
			Platform:        info.Platform,
			PlatformVersion: info.PlatformVersion,
			KernelVersion:   info.KernelVersion,
		}
	}
	if facts.Hostname == "" {
		facts.Hostname, _ = os.Hostname()
	}
	return facts
}

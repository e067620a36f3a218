package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-tangra/go-tangra-sbom/internal/component"
)

// ProfileCollector replays a system_profiler JSON dump captured earlier,
// on any platform. Host facts come from the dump, not the local machine.
type ProfileCollector struct {
	path  string
	data  []byte
	facts HostFacts
}

func NewProfileCollector(path string) *ProfileCollector {
	return &ProfileCollector{path: path}
}

func (c *ProfileCollector) Name() string { return "macos-profile" }

// Setup reads the dump from disk.
func (c *ProfileCollector) Setup(ctx context.Context) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	c.data = data
	c.facts = profileHostFacts(data)
	return nil
}

func (c *ProfileCollector) Collect(ctx context.Context) ([]component.Component, error) {
	if c.data == nil {
		return nil, fmt.Errorf("profile %s not loaded", c.path)
	}
	return CollectFromJSON(c.data)
}

func (c *ProfileCollector) HostFacts() HostFacts { return c.facts }

// profileHostFacts reads the captured machine's identity from the first
// SPSoftwareDataType item. A malformed dump yields empty facts; Collect
// reports the decode error.
func profileHostFacts(data []byte) HostFacts {
	facts := HostFacts{Platform: "darwin"}

	var p profile
	if err := json.Unmarshal(data, &p); err != nil || len(p.Software) == 0 {
		return facts
	}
	var item softwareItem
	if err := json.Unmarshal(p.Software[0], &item); err != nil {
		return facts
	}

	facts.Hostname = item.LocalHostName
	// "macOS 14.2.1 (23C71)" -> "14.2.1"
	if fields := strings.Fields(strings.TrimPrefix(item.OSVersion, "macOS ")); len(fields) > 0 {
		facts.PlatformVersion = fields[0]
	}
	facts.KernelVersion = strings.TrimPrefix(item.KernelVersion, "Darwin ")
	return facts
}

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-tangra/go-tangra-sbom/internal/component"
	"github.com/go-tangra/go-tangra-sbom/internal/logging"
	"github.com/go-tangra/go-tangra-sbom/internal/runner"
)

const profilerSource = "system_profiler"

// Accepted lastModified layouts, most common first.
var profilerTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05",
}

type profile struct {
	Software     []json.RawMessage `json:"SPSoftwareDataType"`
	Extensions   []json.RawMessage `json:"SPExtensionsDataType"`
	Applications []json.RawMessage `json:"SPApplicationsDataType"`
}

type softwareItem struct {
	OSVersion     string `json:"os_version"`
	KernelVersion string `json:"kernel_version"`
	LocalHostName string `json:"local_host_name"`
}

type applicationItem struct {
	Name         string   `json:"_name"`
	ArchKind     string   `json:"arch_kind"`
	LastModified string   `json:"lastModified"`
	ObtainedFrom string   `json:"obtained_from"`
	Path         string   `json:"path"`
	SignedBy     []string `json:"signed_by"`
	Version      string   `json:"version"`
}

type extensionItem struct {
	Name         string `json:"_name"`
	BundleID     string `json:"spext_bundleid"`
	LastModified string `json:"spext_lastModified"`
	Path         string `json:"spext_path"`
	SignedBy     string `json:"spext_signed_by"`
	SpextVersion string `json:"spext_version"`
	Version      string `json:"version"`
}

// MacCollector inventories macOS through a single system_profiler dump.
type MacCollector struct {
	runner      runner.Runner
	detailLevel string
}

// NewMacCollector returns a collector that runs system_profiler at the
// given detail level (mini, basic or full).
func NewMacCollector(r runner.Runner, detailLevel string) *MacCollector {
	if detailLevel == "" {
		detailLevel = "full"
	}
	return &MacCollector{runner: r, detailLevel: detailLevel}
}

func (c *MacCollector) Name() string { return "macos" }

func (c *MacCollector) Setup(ctx context.Context) error { return nil }

func (c *MacCollector) Collect(ctx context.Context) ([]component.Component, error) {
	start := time.Now()
	out, err := c.runner.Run(ctx, "system_profiler",
		"SPSoftwareDataType", "SPExtensionsDataType", "SPApplicationsDataType",
		"-detailLevel", c.detailLevel, "-json")
	if err != nil {
		return nil, err
	}
	log.Debug("profile captured", "bytes", len(out), "detailLevel", c.detailLevel,
		logging.KeyDurationMs, time.Since(start).Milliseconds())

	return CollectFromJSON([]byte(out))
}

// CollectFromJSON maps a captured system_profiler JSON dump to components.
func CollectFromJSON(data []byte) ([]component.Component, error) {
	var p profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &SchemaError{Source: profilerSource, Detail: "profile document", Err: err}
	}

	comps := make([]component.Component, 0, len(p.Software)+len(p.Extensions)+len(p.Applications))

	for i, raw := range p.Software {
		var item softwareItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &SchemaError{Source: profilerSource, Detail: fmt.Sprintf("SPSoftwareDataType[%d]", i), Err: err}
		}
		comps = append(comps, macOSComponent(item, raw))
	}

	for i, raw := range p.Extensions {
		var item extensionItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &SchemaError{Source: profilerSource, Detail: fmt.Sprintf("SPExtensionsDataType[%d]", i), Err: err}
		}
		c, err := extensionComponent(item, raw)
		if err != nil {
			return nil, &SchemaError{Source: profilerSource, Detail: fmt.Sprintf("SPExtensionsDataType[%d] %s", i, item.Name), Err: err}
		}
		comps = append(comps, c)
	}

	for i, raw := range p.Applications {
		var item applicationItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &SchemaError{Source: profilerSource, Detail: fmt.Sprintf("SPApplicationsDataType[%d]", i), Err: err}
		}
		c, err := applicationComponent(item, raw)
		if err != nil {
			return nil, &SchemaError{Source: profilerSource, Detail: fmt.Sprintf("SPApplicationsDataType[%d] %s", i, item.Name), Err: err}
		}
		comps = append(comps, c)
	}

	log.Info("profile mapped",
		"os", len(p.Software),
		"drivers", len(p.Extensions),
		"applications", len(p.Applications),
	)
	return comps, nil
}

func macOSComponent(item softwareItem, raw json.RawMessage) component.Component {
	return component.Normalize(component.Component{
		Kind:       component.OS,
		Name:       "macOS",
		ID:         "macOS",
		Version:    strings.TrimPrefix(item.OSVersion, "macOS "),
		Path:       "/",
		Publishers: component.ApplePublishers(),
		RawInfo:    raw,
	})
}

func extensionComponent(item extensionItem, raw json.RawMessage) (component.Component, error) {
	modified, err := parseTime(item.LastModified, profilerTimeLayouts...)
	if err != nil {
		return component.Component{}, err
	}
	return component.Normalize(component.Component{
		Kind:       component.Driver,
		Name:       item.Name,
		ID:         item.BundleID,
		Version:    component.FirstNonEmpty(item.Version, item.SpextVersion),
		Path:       item.Path,
		Modified:   modified,
		Publishers: component.SinglePublisher(item.SignedBy),
		RawInfo:    raw,
	}), nil
}

func applicationComponent(item applicationItem, raw json.RawMessage) (component.Component, error) {
	modified, err := parseTime(item.LastModified, profilerTimeLayouts...)
	if err != nil {
		return component.Component{}, err
	}
	return component.Normalize(component.Component{
		Kind:       component.Application,
		Name:       item.Name,
		Version:    item.Version,
		Path:       item.Path,
		Modified:   modified,
		Publishers: item.SignedBy,
		RawInfo:    raw,
	}), nil
}

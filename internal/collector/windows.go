package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"github.com/go-tangra/go-tangra-sbom/internal/component"
	"github.com/go-tangra/go-tangra-sbom/internal/logging"
	"github.com/go-tangra/go-tangra-sbom/internal/runner"
	"github.com/go-tangra/go-tangra-sbom/internal/uninstall"
)

// driverquery column names.
const (
	colModuleName  = "Module Name"
	colDisplayName = "Display Name"
	colPath        = "Path"
	colLinkDate    = "Link Date"
)

var requiredDriverColumns = []string{colModuleName, colDisplayName, colPath, colLinkDate}

// Link Date layouts follow the console locale. The first is en-US; the
// day-first slash form (en-GB, fr-FR, es-ES, pt-BR) never carries AM/PM.
var linkDateLayouts = []string{
	"1/2/2006 3:04:05 PM",
	"2/1/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2.1.2006 15:04:05",
}

const versionMarker = "[Version "

// VersionReader returns the product version of a binary.
type VersionReader interface {
	FileVersion(path string) (string, error)
}

// UninstallSource lists uninstall registry entries.
type UninstallSource interface {
	Entries(ctx context.Context) ([]uninstall.Entry, error)
}

// WindowsCollector inventories Windows through ver, driverquery and the
// uninstall registry.
type WindowsCollector struct {
	runner    runner.Runner
	versions  VersionReader
	uninstall UninstallSource
	workers   int
	enc       encoding.Encoding
}

// NewWindowsCollector wires the collector to its data sources. workers
// bounds concurrent version-resource lookups.
func NewWindowsCollector(r runner.Runner, versions VersionReader, src UninstallSource, workers int) *WindowsCollector {
	if workers < 1 {
		workers = 1
	}
	return &WindowsCollector{runner: r, versions: versions, uninstall: src, workers: workers}
}

func (c *WindowsCollector) Name() string { return "windows" }

// Setup detects the console code page so later tool output can be decoded.
// Detection failure leaves UTF-8 in place.
func (c *WindowsCollector) Setup(ctx context.Context) error {
	out, err := c.runner.Run(ctx, "cmd.exe", "/c", "chcp")
	if err != nil {
		log.Warn("console code page detection failed, assuming UTF-8", logging.KeyError, err)
		return nil
	}

	enc, err := runner.EncodingFromCHCP(out)
	if err != nil {
		log.Warn("unsupported console code page, assuming UTF-8", logging.KeyError, err)
		return nil
	}
	c.enc = enc
	log.Debug("console code page detected", "chcp", strings.TrimSpace(out), "utf8", enc == nil)
	return nil
}

func (c *WindowsCollector) Collect(ctx context.Context) ([]component.Component, error) {
	start := time.Now()
	osComp, err := c.collectOS(ctx)
	if err != nil {
		return nil, fmt.Errorf("os: %w", err)
	}
	phaseDone("os", start, 1)

	var drivers, apps []component.Component
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var err error
		if drivers, err = c.collectDrivers(gctx); err != nil {
			return fmt.Errorf("drivers: %w", err)
		}
		phaseDone("drivers", start, len(drivers))
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		if apps, err = c.collectApplications(gctx); err != nil {
			return fmt.Errorf("applications: %w", err)
		}
		phaseDone("applications", start, len(apps))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	comps := make([]component.Component, 0, 1+len(drivers)+len(apps))
	comps = append(comps, osComp)
	comps = append(comps, drivers...)
	comps = append(comps, apps...)
	return comps, nil
}

func (c *WindowsCollector) run(ctx context.Context, args ...string) (string, error) {
	out, err := c.runner.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return runner.Decode(c.enc, out)
}

func (c *WindowsCollector) collectOS(ctx context.Context) (component.Component, error) {
	out, err := c.run(ctx, "cmd.exe", "/c", "ver")
	if err != nil {
		return component.Component{}, err
	}

	version, err := parseVer(out)
	if err != nil {
		return component.Component{}, err
	}

	return component.Normalize(component.Component{
		Kind:       component.OS,
		Name:       "Microsoft Windows",
		Version:    version,
		Path:       "/",
		Publishers: component.MicrosoftPublishers(),
		RawInfo:    component.Raw(map[string]string{"ver": strings.TrimSpace(out)}),
	}), nil
}

// parseVer extracts the build from a banner such as
// "Microsoft Windows [Version 10.0.19045.3803]".
func parseVer(out string) (string, error) {
	i := strings.Index(out, versionMarker)
	if i < 0 {
		return "", &SchemaError{Source: "ver", Detail: fmt.Sprintf("no %q in %q", versionMarker, strings.TrimSpace(out))}
	}
	rest := out[i+len(versionMarker):]
	j := strings.Index(rest, "]")
	if j < 0 {
		return "", &SchemaError{Source: "ver", Detail: fmt.Sprintf("unterminated version in %q", strings.TrimSpace(out))}
	}
	return strings.TrimSpace(rest[:j]), nil
}

// driverRecord is one driverquery row keyed by column name.
type driverRecord map[string]string

func (c *WindowsCollector) collectDrivers(ctx context.Context) ([]component.Component, error) {
	out, err := c.run(ctx, "driverquery.exe", "/v", "/FO", "CSV")
	if err != nil {
		return nil, err
	}

	records, err := parseDriverQuery(out)
	if err != nil {
		return nil, err
	}

	comps := make([]component.Component, len(records))
	for i, rec := range records {
		modified, err := parseTime(rec[colLinkDate], linkDateLayouts...)
		if err != nil {
			return nil, &SchemaError{Source: "driverquery", Detail: fmt.Sprintf("row %d %s", i+1, rec[colModuleName]), Err: err}
		}
		comps[i] = component.Component{
			Kind:     component.Driver,
			Name:     rec[colDisplayName],
			ID:       rec[colModuleName],
			Path:     rec[colPath],
			Modified: modified,
			RawInfo:  component.Raw(rec),
		}
	}

	if err := c.fillVersions(ctx, comps); err != nil {
		return nil, err
	}

	for i := range comps {
		comps[i] = component.Normalize(comps[i])
	}
	return comps, nil
}

// fillVersions looks up file versions with at most c.workers in flight.
// Lookup failures leave the version empty.
func (c *WindowsCollector) fillVersions(ctx context.Context, comps []component.Component) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i := range comps {
		if comps[i].Path == "" {
			log.Debug("driver has no path, skipping version lookup", "driver", comps[i].ID)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			version, err := c.versions.FileVersion(comps[i].Path)
			if err != nil {
				log.Warn("driver version unavailable",
					"driver", comps[i].ID,
					logging.KeyPath, comps[i].Path,
					logging.KeyError, err,
				)
				return nil
			}
			comps[i].Version = version
			return nil
		})
	}
	return g.Wait()
}

// parseDriverQuery reads `driverquery /v /FO CSV` output. Columns are
// located by header name.
func parseDriverQuery(out string) ([]driverRecord, error) {
	r := csv.NewReader(strings.NewReader(out))

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Source: "driverquery", Detail: "empty output"}
	}
	if err != nil {
		return nil, &SchemaError{Source: "driverquery", Detail: "header", Err: err}
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range requiredDriverColumns {
		if _, ok := index[col]; !ok {
			return nil, &SchemaError{Source: "driverquery", Detail: fmt.Sprintf("missing column %q", col)}
		}
	}

	var records []driverRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &SchemaError{Source: "driverquery", Detail: "row", Err: err}
		}

		rec := make(driverRecord, len(header))
		for i, name := range header {
			rec[name] = strings.TrimSpace(row[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *WindowsCollector) collectApplications(ctx context.Context) ([]component.Component, error) {
	entries, err := c.uninstall.Entries(ctx)
	if err != nil {
		return nil, err
	}

	comps := make([]component.Component, 0, len(entries))
	for _, e := range entries {
		comp, ok := applicationFromEntry(e)
		if !ok {
			log.Debug("uninstall entry has no DisplayName, skipping", "key", e.KeyName, "root", e.Root)
			continue
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

func applicationFromEntry(e uninstall.Entry) (component.Component, bool) {
	name := e.Properties["DisplayName"]
	if name == "" {
		return component.Component{}, false
	}

	return component.Normalize(component.Component{
		Kind:       component.Application,
		Name:       name,
		ID:         e.KeyName,
		Version:    component.Lookup(e.Properties, "DisplayVersion", "Version"),
		Path:       component.Lookup(e.Properties, "InstallLocation", "InstallSource", "BundleCachePath"),
		Modified:   e.Modified,
		Publishers: component.SinglePublisher(e.Properties["Publisher"]),
		RawInfo:    component.Raw(e),
	}), true
}

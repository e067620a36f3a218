// Package output renders an inventory snapshot in the configured format.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-tangra/go-tangra-sbom/internal/collector"
	"github.com/go-tangra/go-tangra-sbom/internal/config"
	"github.com/go-tangra/go-tangra-sbom/internal/logging"
	"github.com/go-tangra/go-tangra-sbom/internal/store"
)

var log = logging.L("output")

// Write renders snap to w in one of the stream formats (text, json, yaml).
func Write(w io.Writer, snap *collector.Snapshot, format string) error {
	switch format {
	case config.FormatText:
		return writeText(w, snap)
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q cannot be streamed", format)
	}
}

// writeText emits one line per component, the timestamp wrapped in angle
// brackets: <2009-07-14T01:19:10Z> [Driver] name=Beep version= path=...
func writeText(w io.Writer, snap *collector.Snapshot) error {
	for _, c := range snap.Components {
		_, err := fmt.Fprintf(w, "<%s> [%s] name=%s version=%s path=%s\n",
			c.Modified.UTC().Format(time.RFC3339), c.Kind, c.Name, c.Version, c.Path)
		if err != nil {
			return err
		}
	}
	return nil
}

// Save writes snap to dest, or to stdout when dest is empty. The sqlite
// format archives the snapshot in the database file at dest.
func Save(ctx context.Context, snap *collector.Snapshot, format, dest string) error {
	if format == config.FormatSQLite {
		return saveSQLite(ctx, snap, dest)
	}

	if dest == "" {
		return Write(os.Stdout, snap, format)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := Write(f, snap, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	log.Info("inventory written", logging.KeyPath, dest, "format", format, logging.KeyCount, len(snap.Components))
	return nil
}

func saveSQLite(ctx context.Context, snap *collector.Snapshot, dest string) error {
	if dest == "" {
		return fmt.Errorf("format %s requires an output path", config.FormatSQLite)
	}

	s, err := store.New(dest)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.Insert(ctx, snap); err != nil {
		return err
	}

	log.Info("inventory archived", logging.KeyPath, dest, "runId", snap.RunID, logging.KeyCount, len(snap.Components))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/go-tangra/go-tangra-sbom/internal/collector"
	"github.com/go-tangra/go-tangra-sbom/internal/config"
	"github.com/go-tangra/go-tangra-sbom/internal/logging"
	"github.com/go-tangra/go-tangra-sbom/internal/output"
	"github.com/go-tangra/go-tangra-sbom/internal/store"
)

var (
	version    = "dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

var (
	cfgFile     string
	fromProfile string
)

var rootCmd = &cobra.Command{
	Use:   "sbom",
	Short: "sbom - software bill of materials for the local host",
	Long: `sbom inventories the installed operating system, drivers and applications
of the local host and writes them as text, JSON, YAML or a SQLite archive.

macOS data comes from system_profiler; Windows data from ver, driverquery,
the uninstall registry and binary version resources.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCollect,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sbom %s (commit: %s, built: %s)\n", version, commitHash, buildDate)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs archived in a SQLite file",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete archived runs older than the specified number of days",
	RunE:  runPurge,
}

var (
	dbPath    string
	runsHost  string
	runsLimit int
	purgeDays int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sbom.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json (default text)")
	rootCmd.PersistentFlags().StringP("format", "f", "", "output format: text, json, yaml, sqlite (default text)")

	rootCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
	rootCmd.Flags().StringVar(&fromProfile, "from-profile", "", "map a captured system_profiler JSON file instead of collecting")

	for _, c := range []*cobra.Command{runsCmd, showCmd, purgeCmd} {
		c.Flags().StringVar(&dbPath, "db", "", "SQLite archive written with --format sqlite")
		_ = c.MarkFlagRequired("db")
	}
	runsCmd.Flags().StringVar(&runsHost, "host", "", "only list runs of this hostname")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "maximum number of runs to list")
	purgeCmd.Flags().IntVar(&purgeDays, "days", 90, "purge runs older than this many days")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(purgeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads config, applies CLI flag overrides and initializes logging.
// Unless collecting, only the logging settings are validated.
func loadConfig(cmd *cobra.Command, collecting bool) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// CLI flag overrides.
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		cfg.Format = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Output = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}

	validate := cfg.ValidateLogging
	if collecting {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	return cfg, nil
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var c collector.Collector
	if fromProfile != "" {
		pc := collector.NewProfileCollector(fromProfile)
		if err := pc.Setup(ctx); err != nil {
			return err
		}
		c = pc
	} else {
		if c, err = collector.New(ctx, cfg); err != nil {
			return err
		}
	}

	snap, err := collector.Run(ctx, c)
	if err != nil {
		return err
	}

	return output.Save(ctx, snap, cfg.Format, cfg.Output)
}

func openStore() (*store.Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return store.New(dbPath)
}

func runList(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd, false); err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	records, total, err := s.List(cmd.Context(), store.ListFilter{Hostname: runsHost, PageSize: runsLimit})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tHOSTNAME\tCOLLECTOR\tCOLLECTED AT\tCOMPONENTS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.RunID, r.Hostname, r.Collector, r.CollectedAt.Format(time.RFC3339), r.ComponentCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if total > len(records) {
		fmt.Fprintf(cmd.ErrOrStderr(), "showing %d of %d runs\n", len(records), total)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	switch format {
	case config.FormatText, config.FormatJSON, config.FormatYAML:
	default:
		return fmt.Errorf("show cannot write format %q, use text, json or yaml", cfg.Format)
	}

	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := s.Get(cmd.Context(), runID)
	if store.IsNotFound(err) {
		return fmt.Errorf("run %s not found in %s", runID, dbPath)
	}
	if err != nil {
		return err
	}

	return output.Write(cmd.OutOrStdout(), snap, format)
}

func runPurge(cmd *cobra.Command, args []string) error {
	if purgeDays < 0 {
		return fmt.Errorf("--days must not be negative, got %d", purgeDays)
	}
	if _, err := loadConfig(cmd, false); err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Purge(cmd.Context(), time.Duration(purgeDays)*24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d run(s) older than %d days\n", n, purgeDays)
	return nil
}

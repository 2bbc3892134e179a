// hemicycle — parliamentary roll-call vote aggregation.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/seenimoa/hemicycle/api"
	"github.com/seenimoa/hemicycle/internal/config"
	"github.com/seenimoa/hemicycle/internal/export"
	"github.com/seenimoa/hemicycle/internal/extract"
	"github.com/seenimoa/hemicycle/internal/logging"
	"github.com/seenimoa/hemicycle/internal/pipeline"
	"github.com/seenimoa/hemicycle/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hemicycle",
	Short: "hemicycle — roll-call votes of the Assemblée nationale",
	Long: `hemicycle downloads the Assemblée nationale open data archives,
extracts every deputy's vote, computes deputy and group statistics
(participation, position shares, cohesion) and publishes them as static
JSON files, an optional SQL store and an HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if override, _ := cmd.Flags().GetString("log-level"); override != "" {
			level = override
		}
		if err := logging.Setup(level, cfg.Logging.Format, os.Stderr); err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hemicycle %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Generate Command ---

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Download ballots, aggregate and export the dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		noStore, _ := cmd.Flags().GetBool("no-store")
		if limit <= 0 {
			limit = cfg.Source.Limit
		}

		ctx := cmd.Context()
		p, cleanup, err := buildPipeline(ctx, cfg, limit, !noStore)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Printf("Generating %s dataset (legislature %s, up to %d ballots)\n",
			cfg.Source.Chamber, cfg.Source.Legislature, limit)
		res, err := p.Run(ctx, func(stage, detail string) {
			fmt.Printf("  › %-9s %s\n", stage, detail)
		})
		if err != nil {
			return err
		}
		printSummary(res)
		return nil
	},
}

func init() {
	generateCmd.Flags().Int("limit", 0, "number of most recent ballots to keep (default: source.limit)")
	generateCmd.Flags().Bool("no-store", false, "skip writing the run to the database")
}

// --- Aggregate Command ---

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Recompute deputy and group profiles from exported ballots",
	RunE: func(cmd *cobra.Command, args []string) error {
		noStore, _ := cmd.Flags().GetBool("no-store")
		ctx := cmd.Context()
		p, cleanup, err := buildPipeline(ctx, cfg, cfg.Source.Limit, !noStore)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := p.Reaggregate(ctx, nil)
		if err != nil {
			return err
		}
		printSummary(res)
		return nil
	},
}

func init() {
	aggregateCmd.Flags().Bool("no-store", false, "skip writing the run to the database")
}

// --- Extract Command ---

var extractCmd = &cobra.Command{
	Use:   "extract [file.xml]",
	Short: "Print the vote records extracted from one ballot document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		votes := extract.WithMaxDepth(cfg.Extract.MaxDepth).ExtractFromReader(f)
		out, err := json.MarshalIndent(votes, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}

		ctx := cmd.Context()
		p, cleanup, err := buildPipeline(ctx, cfg, cfg.Source.Limit, true)
		if err != nil {
			return err
		}
		defer cleanup()

		srv, err := api.NewServer(api.Options{
			Config:    cfg,
			Exporter:  p.Exporter,
			Refresher: p,
			Version:   version,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Starting hemicycle API server on %s\n", cfg.API.Addr())
		return srv.ListenAndServe(ctx, cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default: api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and data directory state",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  hemicycle — Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (Paris):  %s\n", utils.NowParis().Format("2006-01-02 15:04:05"))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Source:        %s, legislature %s (limit %d)\n", cfg.Source.Chamber, cfg.Source.Legislature, cfg.Source.Limit)
		fmt.Printf("    Order:         %s\n", cfg.Aggregate.Order)
		fmt.Printf("    Data dir:      %s\n", cfg.Output.DataDir)
		fmt.Printf("    Themes file:   %s\n", cfg.Output.ThemesFile)
		fmt.Printf("    API Server:    %s\n", cfg.API.Addr())
		fmt.Println()

		fmt.Println("  Secrets:")
		for _, s := range config.CheckSecrets(cfg) {
			status := "not set"
			if s.IsSet {
				status = fmt.Sprintf("set (%s: %s)", s.Source, s.Masked)
			}
			fmt.Printf("    %-25s %s\n", s.Name+":", status)
		}
		fmt.Println()

		fmt.Println("  Data:")
		printDataState(export.New(cfg.Output.DataDir))

		if cfg.Database.Enabled() {
			printStoreState(cmd.Context(), cfg)
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func printSummary(res *pipeline.Result) {
	fmt.Println()
	fmt.Printf("  Ballots:   %s\n", humanize.Comma(int64(res.Ballots)))
	fmt.Printf("  Votes:     %s\n", humanize.Comma(int64(res.Votes)))
	fmt.Printf("  Deputies:  %s\n", humanize.Comma(int64(res.Deputies)))
	fmt.Printf("  Groups:    %s\n", humanize.Comma(int64(res.Groups)))
	if res.RunID != "" {
		fmt.Printf("  Run:       %s\n", res.RunID)
	}
	fmt.Printf("  Duration:  %s\n", res.Duration.Round(time.Millisecond))
}

func printDataState(e *export.Exporter) {
	months, err := e.Months()
	if err != nil || len(months) == 0 {
		fmt.Println("    no exported ballots")
		return
	}
	fmt.Printf("    Months:        %d (%s → %s)\n", len(months), months[0], months[len(months)-1])
	for _, name := range []string{export.IndexFile, export.DeputiesFile, export.GroupsFile} {
		info, err := os.Stat(filepath.Join(e.DataDir, name))
		if err != nil {
			fmt.Printf("    %-14s missing\n", name+":")
			continue
		}
		fmt.Printf("    %-14s %s, %s\n", name+":", humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
}

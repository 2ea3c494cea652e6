// Package cli provides the command-line interface of the loader.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/iostat-loader/internal/clickhouse"
	"github.com/SteelMorgan/iostat-loader/internal/config"
	"github.com/SteelMorgan/iostat-loader/internal/journal"
	"github.com/SteelMorgan/iostat-loader/internal/mapping"
	"github.com/SteelMorgan/iostat-loader/internal/observability"
	"github.com/SteelMorgan/iostat-loader/internal/service"
	"github.com/SteelMorgan/iostat-loader/internal/writer"
)

// Version is set at build time
var Version = "0.1.0"

// Execute runs the root command and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCommand creates the root command. Flag defaults come from the environment.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "iostat-loader",
		Short: "Load compressed iostat dumps into ClickHouse",
		Long: `iostat-loader reads "iostat -x" dumps (one .bz2 archive per collection period),
parses every device row and writes it as a time-series point.

Archives in the directory are processed in file name order. Each point is
tagged with the cell name from the dump header and the device name, and
stamped with the interval time converted from the source timezone to UTC.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Dir, "dir", "d", cfg.Dir, "Directory with iostat dumps")
	f.StringSliceVar(&cfg.Extensions, "ext", cfg.Extensions, "Archive extensions to import (.bz2, .gz, .zst, .txt)")
	f.StringVar(&cfg.ClickHouseHost, "dbhost", cfg.ClickHouseHost, "Database host")
	f.IntVar(&cfg.ClickHousePort, "dbport", cfg.ClickHousePort, "Database port")
	f.StringVar(&cfg.ClickHouseDB, "dbname", cfg.ClickHouseDB, "Database name")
	f.StringVar(&cfg.ClickHouseUser, "dbuser", cfg.ClickHouseUser, "Database user name")
	f.StringVar(&cfg.ClickHousePassword, "dbpass", cfg.ClickHousePassword, "Database user password")
	f.StringVar(&cfg.PointsTable, "table", cfg.PointsTable, "Table receiving the points")
	f.IntVar(&cfg.SourceTZOffsetHours, "tz-offset", cfg.SourceTZOffsetHours, "UTC offset in hours of the dump timestamps")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Points per insert")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Archives imported in parallel")
	f.StringVar(&cfg.Sink, "sink", cfg.Sink, "Output sink (clickhouse|parquet)")
	f.StringVar(&cfg.ParquetDir, "parquet-dir", cfg.ParquetDir, "Output directory of the parquet sink")
	f.BoolVar(&cfg.ReadOnly, "read-only", cfg.ReadOnly, "Parse archives without writing points")
	f.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "BoltDB file recording completed imports")
	f.BoolVar(&cfg.SkipImported, "skip-imported", cfg.SkipImported, "Skip archives the journal shows as imported")
	f.BoolVar(&cfg.KeepGoing, "keep-going", cfg.KeepGoing, "Continue with the next archive after a failure")
	f.StringVar(&cfg.CellMapPath, "cell-map", cfg.CellMapPath, "YAML file mapping cells to clusters")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write logs to this file")

	cmd.AddCommand(newJournalCommand(cfg))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	})

	return cmd
}

func runImport(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogFile)
	log.Info().Str("version", Version).Msg("Starting iostat loader")

	shutdown, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "iostat-loader",
		ServiceVersion: Version,
		Endpoint:       cfg.TracingEndpoint,
		Protocol:       cfg.TracingProtocol,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	} else {
		defer shutdown(context.Background())
	}

	runID := uuid.NewString()

	sink, closeSink, err := openSink(ctx, cfg, runID)
	if err != nil {
		return err
	}
	defer closeSink()

	var j journal.Journal
	if cfg.JournalPath != "" {
		bj, err := journal.NewBoltDBJournal(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer bj.Close()
		j = bj
	}

	cells := mapping.EmptyCellMap()
	if cfg.CellMapPath != "" {
		if cells, err = mapping.LoadCellMap(cfg.CellMapPath); err != nil {
			return err
		}
	}

	svc, err := service.NewImportService(cfg, sink, j, cells, os.Stdout)
	if err != nil {
		return err
	}
	svc.WithRunID(runID)

	report, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d archives failed: %w", report.Failed, report.Files, report.Err())
	}
	return nil
}

// openSink builds the point sink and returns a function releasing it
func openSink(ctx context.Context, cfg *config.Config, runID string) (writer.Sink, func(), error) {
	if cfg.ReadOnly {
		w := writer.NewDiscardWriter()
		return w, func() { w.Close() }, nil
	}

	switch cfg.Sink {
	case config.SinkParquet:
		w, err := writer.NewParquetWriter(cfg.ParquetDir, runID)
		if err != nil {
			return nil, nil, err
		}
		return w, func() {
			if err := w.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close parquet sink")
			}
		}, nil
	default:
		client, err := clickhouse.NewClient(ctx, clickhouse.Options{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			return nil, nil, err
		}
		w := writer.NewClickHouseWriter(client.Conn(), cfg.PointsTable, cfg.MetricsTable)
		return w, func() { client.Close() }, nil
	}
}

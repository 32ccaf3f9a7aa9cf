package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ifclca/ifcqto/internal/logger"
	"github.com/ifclca/ifcqto/internal/pipeline"
	"github.com/ifclca/ifcqto/internal/record"
	"github.com/ifclca/ifcqto/internal/sink"
	"github.com/ifclca/ifcqto/internal/volume"
	"github.com/spf13/cobra"
)

var extractFlags struct {
	project         string
	sinkDSN         string
	user            string
	session         string
	batchSize       int
	workers         int
	geometryWorkers int
}

var extractCmd = &cobra.Command{
	Use:   "extract [source]",
	Short: "Extract element records from a model snapshot and persist them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		f := extractFlags
		if f.sinkDSN == "" {
			f.sinkDSN = cfg.DatabaseURL
		}
		if !cmd.Flags().Changed("batch-size") {
			f.batchSize = cfg.BatchSize
		}
		if !cmd.Flags().Changed("workers") {
			f.workers = cfg.Workers
		}
		if !cmd.Flags().Changed("geometry-workers") {
			f.geometryWorkers = cfg.GeometryWorkers
		}
		if f.session == "" {
			f.session = uuid.NewString()
		}

		m, err := openModel(source, log)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		out, err := sink.Open(ctx, f.sinkDSN, sink.Options{
			MongoDatabase:   cfg.MongoDatabase,
			MongoCollection: cfg.MongoCollection,
			Stdout:          cmd.OutOrStdout(),
		})
		if err != nil {
			return fmt.Errorf("open sink: %w", err)
		}
		defer func() { _ = out.Close() }()

		corr := record.Correlation{
			Origin:    source,
			SessionID: f.session,
			UserID:    f.user,
			ProjectID: f.project,
		}
		runLog := log.With("project_id", f.project, "session_id", f.session, "user_id", f.user)
		proc := newProcessor(m, cfg, f.geometryWorkers, corr)
		if ids, ok := out.(sink.IDSource); ok {
			proc.Builder = record.NewBuilderWithIDs(ids.NewID)
		}
		runner := pipeline.NewRunner(proc, out,
			pipeline.Options{BatchSize: f.batchSize, Workers: f.workers}, runLog)

		start := time.Now()
		stats, err := runner.Run(ctx, m.Elements())
		if err != nil {
			runLog.Error("run failed", "error", err, "persisted", stats.Persisted)
			return err
		}
		runLog.Info("extract done",
			"elements", stats.Processed,
			"persisted", stats.Persisted,
			"explicit_quantity", stats.BySource[volume.SourceQuantity],
			"explicit_property", stats.BySource[volume.SourceProperty],
			"geometry_derived", stats.BySource[volume.SourceGeometry],
			"unresolved", stats.BySource[volume.SourceUnresolved],
			"element_failures", stats.Failures,
			"elapsed", time.Since(start).String(),
		)
		return nil
	},
}

func init() {
	fl := extractCmd.Flags()
	fl.StringVarP(&extractFlags.project, "project", "p", "", "project identifier stamped on every record")
	fl.StringVar(&extractFlags.sinkDSN, "sink", "", "sink DSN: mongodb://, postgres://, sqlite://, *.db or - (default DATABASE_URL)")
	fl.StringVar(&extractFlags.user, "user", "", "user identifier stamped on every record")
	fl.StringVar(&extractFlags.session, "session", "", "session identifier (default: random UUID)")
	fl.IntVar(&extractFlags.batchSize, "batch-size", pipeline.DefaultBatchSize, "records per bulk insert")
	fl.IntVar(&extractFlags.workers, "workers", 0, "concurrent element workers (default GOMAXPROCS)")
	fl.IntVar(&extractFlags.geometryWorkers, "geometry-workers", 0, "concurrent geometry evaluations (default GOMAXPROCS)")
	_ = extractCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(extractCmd)
}

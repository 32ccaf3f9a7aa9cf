package cmd

import (
	"fmt"

	"github.com/ifclca/ifcqto/internal/logger"
	"github.com/ifclca/ifcqto/internal/pipeline"
	"github.com/ifclca/ifcqto/internal/record"
	"github.com/ifclca/ifcqto/internal/sink"
	"github.com/spf13/cobra"
)

var inspectFlags struct {
	project string
	limit   int
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [source]",
	Short: "Print element records as JSON lines without persisting them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		m, err := openModel(args[0], log)
		if err != nil {
			return err
		}
		elements := m.Elements()
		if inspectFlags.limit > 0 && len(elements) > inspectFlags.limit {
			elements = elements[:inspectFlags.limit]
		}

		out := sink.NewJSONLines(cmd.OutOrStdout())
		defer func() { _ = out.Close() }()

		corr := record.Correlation{Origin: args[0], ProjectID: inspectFlags.project}
		// one worker keeps the output in model order
		runner := pipeline.NewRunner(newProcessor(m, cfg, cfg.GeometryWorkers, corr), out,
			pipeline.Options{BatchSize: cfg.BatchSize, Workers: 1}, log)
		_, err = runner.Run(cmd.Context(), elements)
		return err
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFlags.project, "project", "p", "", "project identifier stamped on every record")
	inspectCmd.Flags().IntVarP(&inspectFlags.limit, "limit", "n", 0, "only process the first n elements")
	rootCmd.AddCommand(inspectCmd)
}

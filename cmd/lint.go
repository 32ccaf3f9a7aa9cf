package cmd

import (
	"fmt"

	"github.com/ifclca/ifcqto/internal/linter"
	"github.com/ifclca/ifcqto/internal/logger"
	"github.com/spf13/cobra"
)

var lintCmd = &cobra.Command{
	Use:   "lint [source]",
	Short: "Report elements whose volume or material allocation will degrade",
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
		diags := linter.Lint(m, cfg.Lookup.VolumeNames)
		w := cmd.OutOrStdout()
		for _, d := range diags {
			fmt.Fprintln(w, d)
		}
		for _, line := range linter.Summary(diags) {
			fmt.Fprintln(w, line)
		}
		log.Info("lint done", "elements", m.Len(), "diagnostics", len(diags))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

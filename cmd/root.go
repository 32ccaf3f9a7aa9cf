package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ifclca/ifcqto/internal/model"
	"github.com/ifclca/ifcqto/internal/pipeline"
	"github.com/spf13/cobra"
)

// Exit codes. Per-element problems never change the exit code.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitSource      = 2
	ExitPersistence = 3
)

var (
	lookupPath string
	logMode    string
)

var rootCmd = &cobra.Command{
	Use:           "ifcqto",
	Short:         "Extract per-element quantities and material volumes from building models",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&lookupPath, "lookup-config", "", "YAML file with recognized property names and fallback property sets")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "dev or prod (default from LOG_MODE)")
}

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	var perr *pipeline.PersistenceError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, model.ErrSourceUnavailable), errors.Is(err, model.ErrEmptySource):
		return ExitSource
	case errors.As(err, &perr):
		return ExitPersistence
	default:
		return ExitFailure
	}
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(ExitCode(err))
	}
}

// Package cli implements spacectl, an operator tool that works directly
// against the spaces database without going through the HTTP API.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aristath/spaces/internal/config"
	"github.com/aristath/spaces/internal/di"
	"github.com/aristath/spaces/pkg/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	dataDir  string
	logLevel string
	out      io.Writer
}

// NewRootCommand builds the spacectl command tree writing results to out
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	root := &cobra.Command{
		Use:   "spacectl",
		Short: "Operate on account spaces",
		Long: `spacectl manages account spaces directly on the spaces database.
Configuration is read from the environment (.env is honoured) exactly like
the server. Results are printed as JSON.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Override SPACES_DATA_DIR")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newListCmd(opts),
		newCreateCmd(opts),
		newAdjustCmd(opts),
		newSetBalanceCmd(opts),
		newFreezeCmd(opts, true),
		newFreezeCmd(opts, false),
		newTransferCmd(opts),
		newReportCmd(opts),
		newVerifyCmd(opts),
		newAutoTransferCmd(opts),
	)

	return root
}

// Execute runs spacectl against os.Args
func Execute() {
	if err := NewRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// withContainer wires the service graph for the duration of fn
func (o *rootOptions) withContainer(ctx context.Context, fn func(*di.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}

	log := logger.New(logger.Config{
		Level:  o.logLevel,
		Output: os.Stderr,
	})

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	return fn(container)
}

func (o *rootOptions) print(v interface{}) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

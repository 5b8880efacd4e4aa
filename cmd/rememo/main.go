// Package main provides the entry point for the rememo service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version          = "0.1.0-dev"
	globalConfigPath string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:     "rememo",
		Short:   "A journaling companion with semantic memory over your own entries",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&globalConfigPath, "config", "c", "", "Path to config file (YAML)")

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}

// Package main provides the CLI entry point for xlsxstream-go.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, envErr := loadConfig()

	rootCmd := &cobra.Command{
		Use:   "xlsxstream [input.xlsx]",
		Short: "Stream rows out of Excel files",
		Long: `xlsxstream-go reads an Excel package as a stream and writes its rows
as JSON lines, without loading the whole file into memory.
Reads standard input when no file (or "-") is given.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return run(cmd.Context(), cfg, input, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cfg.bindFlags(rootCmd)
	return rootCmd
}

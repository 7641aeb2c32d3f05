package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/parcelguard/claimwatch/internal/cache"
	"github.com/parcelguard/claimwatch/internal/models"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

func newSweepCmd(root *rootOptions) *cobra.Command {
	var asJSON, noColor bool
	names := make([]string, 0, len(models.SweepNames))
	for _, name := range models.SweepNames {
		names = append(names, string(name))
	}

	cmd := &cobra.Command{
		Use:       "sweep <name>",
		Short:     "Run one sweep and print its summary",
		Long:      "Run one sweep and print its summary. Valid sweeps: " + strings.Join(names, ", ") + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ok := models.ParseSweepName(args[0])
			if !ok {
				return fmt.Errorf("unknown sweep %q (valid: %s)", args[0], strings.Join(names, ", "))
			}
			if noColor {
				color.NoColor = true
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, root, cache.NoopProvider{})
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.service.Run(ctx, name)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func printSummary(w io.Writer, s models.SweepSummary) {
	headerColor.Fprintf(w, "Sweep %s", s.Sweep)
	fmt.Fprintf(w, " (run %s, %dms)\n", s.RunID, s.ElapsedMs)

	row := func(label string, n int, c *color.Color) {
		labelColor.Fprintf(w, "  %-10s", label)
		if n > 0 {
			c.Fprintf(w, "%d\n", n)
			return
		}
		fmt.Fprintf(w, "%d\n", n)
	}
	row("processed", s.Processed, goodColor)
	row("added", s.Added, goodColor)
	row("updated", s.Updated, goodColor)
	row("skipped", s.Skipped, warnColor)
	row("deleted", s.Deleted, goodColor)
	row("errored", s.Errored, badColor)

	if s.Truncated {
		warnColor.Fprintln(w, "  budget exhausted, remaining items left for the next run")
	}
	for _, msg := range s.Errors {
		badColor.Fprintf(w, "  error: %s\n", msg)
	}
	for _, msg := range s.Warnings {
		warnColor.Fprintf(w, "  warning: %s\n", msg)
	}
}

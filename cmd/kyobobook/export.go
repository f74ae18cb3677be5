package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ChoisMath/kyobobook/ledger"
	"github.com/spf13/cobra"
)

var exportOpts struct {
	output string
	format string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every application to CSV, JSONL, or both",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		output := cfg.OutputFile
		if exportOpts.output != "" {
			output = exportOpts.output
		}
		format := cfg.OutputFormat
		if exportOpts.format != "" {
			format = strings.ToLower(exportOpts.format)
		}

		e, err := openEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeEnv(e, &err)

		writer, err := ledger.NewExporter(format, output)
		if err != nil {
			return fmt.Errorf("creating writer: %w", err)
		}
		n, err := ledger.Export(cmd.Context(), e.ledger, writer)
		if err != nil {
			writer.Close()
			return fmt.Errorf("export: %w", err)
		}
		if err := finishExport(writer, n); err != nil {
			return err
		}

		slog.Info("export complete",
			slog.Int("rows", n),
			slog.String("format", format),
			slog.String("output", output),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d applications to %s\n", n, output)
		return nil
	},
}

// finishExport checks the written output and closes it. An empty ledger
// leaves an empty JSONL file, so validation needs at least one row.
func finishExport(writer ledger.Exporter, rows int) error {
	if rows > 0 {
		if err := writer.Validate(); err != nil {
			writer.Close()
			return fmt.Errorf("validate export: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOpts.output, "output", "o", "", "output file (default from config)")
	exportCmd.Flags().StringVar(&exportOpts.format, "format", "", "csv, json, or dual (default from config)")
	rootCmd.AddCommand(exportCmd)
}

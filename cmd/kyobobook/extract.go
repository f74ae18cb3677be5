package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ChoisMath/kyobobook/models"
	"github.com/ChoisMath/kyobobook/parser"
	"github.com/ChoisMath/kyobobook/scraper"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Extract book details from a product page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		e, err := openEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeEnv(e, &err)

		start := time.Now()
		rec, err := e.scraper.Extract(cmd.Context(), args[0])
		if err != nil {
			return explainFailure(cmd.ErrOrStderr(), args[0], err)
		}

		out := cmd.OutOrStdout()
		if extractJSON {
			enc := json.NewEncoder(out)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		printSummary(out, rec, time.Since(start), e.scraper.Stats().Snapshot())
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the record as JSON")
	rootCmd.AddCommand(extractCmd)
}

// explainFailure prints hints for a failed extraction and returns err.
func explainFailure(w io.Writer, rawURL string, err error) error {
	if errors.Is(err, scraper.ErrMaintenance) {
		fmt.Fprintln(w, "The store is under scheduled maintenance. Try again later.")
		return err
	}
	if issues := scraper.DiagnoseURL(parser.NormalizeURL(rawURL)); len(issues) > 0 {
		fmt.Fprintln(w, "Possible problems with the URL:")
		for _, issue := range issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
	fmt.Fprintln(w, "Enter the details by hand with the manual command.")
	return err
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func printSummary(w io.Writer, rec *models.BookRecord, duration time.Duration, stats models.StatsSnapshot) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Title", orDash(rec.Title)},
		{"Author", orDash(rec.Author)},
		{"Publisher", orDash(rec.Publisher)},
		{"Price", orDash(rec.Price)},
		{"Method", orDash(rec.ExtractionMethod)},
	})
	t.Render()

	if missing := rec.Missing(); len(missing) > 0 {
		fmt.Fprintf(w, "Missing: %s (fill them in with the apply flags or the manual command)\n", strings.Join(missing, ", "))
	}

	successRate := 0.0
	if stats.TotalAttempts > 0 {
		successRate = float64(stats.PriceSuccesses) / float64(stats.TotalAttempts) * 100
	}
	fmt.Fprintf(w, "Duration: %v  Price success rate: %.2f%%\n", duration.Round(time.Millisecond), successRate)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ChoisMath/kyobobook/intake"
	"github.com/ChoisMath/kyobobook/models"
	"github.com/ChoisMath/kyobobook/scraper"
	"github.com/spf13/cobra"
)

var applyOpts struct {
	name      string
	quantity  int
	title     string
	author    string
	publisher string
	price     string
}

var applyCmd = &cobra.Command{
	Use:   "apply <url>",
	Short: "Extract a product page and record an order request",
	Long:  "Extracts the product page and records the order. Flags fill any field the page did not yield; extracted values are kept.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		e, err := openEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeEnv(e, &err)

		manual := models.BookRecord{
			Title:            applyOpts.title,
			Author:           applyOpts.author,
			Publisher:        applyOpts.publisher,
			Price:            applyOpts.price,
			ExtractionMethod: "manual",
		}

		merged, extractErr := extractWithFallback(cmd.Context(), e.scraper, args[0], manual)
		if errors.Is(extractErr, scraper.ErrMaintenance) {
			return explainFailure(cmd.ErrOrStderr(), args[0], extractErr)
		}

		row, err := e.intake.Apply(cmd.Context(), applyOpts.name, args[0], &merged, applyOpts.quantity)
		if err != nil {
			if errors.Is(err, intake.ErrMissingFields) && extractErr != nil {
				return explainFailure(cmd.ErrOrStderr(), args[0], errors.Join(extractErr, err))
			}
			return err
		}
		printOrder(cmd, "Application recorded", row)
		return nil
	},
}

// extractWithFallback extracts target and fills the fields it did not yield
// from fallback. A failed extraction leaves only the fallback values, except
// during maintenance, when nothing is returned.
func extractWithFallback(ctx context.Context, ex bookExtractor, target string, fallback models.BookRecord) (models.BookRecord, error) {
	rec, err := ex.Extract(ctx, target)
	if errors.Is(err, scraper.ErrMaintenance) {
		return models.BookRecord{}, err
	}
	if err != nil {
		slog.Warn("extraction failed, using supplied values",
			slog.String("url", target),
			slog.Any("error", err),
		)
		rec = &models.BookRecord{}
	}
	return rec.Merge(fallback), err
}

var manualOpts struct {
	name      string
	quantity  int
	title     string
	author    string
	publisher string
	price     string
	url       string
}

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Record an order request with hand-entered details",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		e, err := openEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeEnv(e, &err)

		row, err := e.intake.ManualEntry(cmd.Context(), manualOpts.name, intake.ManualOrder{
			Title:     manualOpts.title,
			Author:    manualOpts.author,
			Publisher: manualOpts.publisher,
			UnitPrice: manualOpts.price,
			Quantity:  manualOpts.quantity,
			SourceURL: manualOpts.url,
		})
		if err != nil {
			return err
		}
		printOrder(cmd, "Manual application recorded", row)
		return nil
	},
}

var qtyName string

var qtyCmd = &cobra.Command{
	Use:   "qty <index> <quantity>",
	Short: "Change the quantity of one of your applications",
	Long:  "Changes the quantity of the application at <index> (the # column of the list command). Only the applicant who made it may change it.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[0], err)
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q: %w", args[1], err)
		}

		e, err := openEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeEnv(e, &err)

		row, err := e.intake.ChangeQuantity(cmd.Context(), qtyName, index, qty)
		if err != nil {
			return err
		}
		printOrder(cmd, "Quantity changed", row)
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyOpts.name, "name", "", "applicant name (required)")
	applyCmd.Flags().IntVar(&applyOpts.quantity, "qty", 1, "quantity (1-100)")
	applyCmd.Flags().StringVar(&applyOpts.title, "title", "", "title, if the page lacks one")
	applyCmd.Flags().StringVar(&applyOpts.author, "author", "", "author, if the page lacks one")
	applyCmd.Flags().StringVar(&applyOpts.publisher, "publisher", "", "publisher, if the page lacks one")
	applyCmd.Flags().StringVar(&applyOpts.price, "price", "", "unit price, if the page lacks one")
	_ = applyCmd.MarkFlagRequired("name")

	manualCmd.Flags().StringVar(&manualOpts.name, "name", "", "applicant name")
	manualCmd.Flags().IntVar(&manualOpts.quantity, "qty", 1, "quantity (1-100)")
	manualCmd.Flags().StringVar(&manualOpts.title, "title", "", "title")
	manualCmd.Flags().StringVar(&manualOpts.author, "author", "", "author")
	manualCmd.Flags().StringVar(&manualOpts.publisher, "publisher", "", "publisher")
	manualCmd.Flags().StringVar(&manualOpts.price, "price", "", "unit price in won, digits only")
	manualCmd.Flags().StringVar(&manualOpts.url, "url", "", "purchase page URL")
	for _, name := range []string{"name", "title", "author", "publisher", "price", "url"} {
		_ = manualCmd.MarkFlagRequired(name)
	}

	qtyCmd.Flags().StringVar(&qtyName, "name", "", "applicant name (must own the application)")
	_ = qtyCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(applyCmd, manualCmd, qtyCmd)
}

func printOrder(cmd *cobra.Command, heading string, row models.OrderRow) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, heading)
	t := newTable(out)
	t.AppendHeader(orderHeader(false))
	t.AppendRow(orderRow(row))
	t.Render()
}

package main

import (
	"fmt"

	"github.com/ChoisMath/kyobobook/intake"
	"github.com/ChoisMath/kyobobook/ledger"
	"github.com/ChoisMath/kyobobook/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listName string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show applications, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		e, err := openEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeEnv(e, &err)

		var apps []intake.Application
		if listName != "" {
			apps, err = e.intake.ApplicationsFor(cmd.Context(), listName)
		} else {
			apps, err = e.intake.Applications(cmd.Context())
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(apps) == 0 {
			fmt.Fprintln(out, "No applications yet.")
			return nil
		}
		renderApplications(newTable(out), apps)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listName, "name", "", "only show this applicant's applications")
	rootCmd.AddCommand(listCmd)
}

func renderApplications(t table.Writer, apps []intake.Application) {
	t.AppendHeader(orderHeader(true))
	for _, app := range apps {
		t.AppendRow(append(table.Row{app.Index}, orderRow(app.Order)...))
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d건", len(apps))})
	t.Render()
}

func orderHeader(withIndex bool) table.Row {
	row := table.Row{
		ledger.HeaderTimestamp,
		ledger.HeaderApplicant,
		ledger.HeaderTitle,
		ledger.HeaderAuthor,
		ledger.HeaderPublisher,
		ledger.HeaderUnitPrice,
		ledger.HeaderQuantity,
		ledger.HeaderTotal,
	}
	if withIndex {
		return append(table.Row{"#"}, row...)
	}
	return row
}

func orderRow(o models.OrderRow) table.Row {
	return table.Row{
		o.Timestamp,
		o.ApplicantName,
		o.Title,
		o.Author,
		o.Publisher,
		intake.FormatWon(o.UnitPrice),
		o.Quantity,
		intake.FormatWon(o.TotalPrice),
	}
}

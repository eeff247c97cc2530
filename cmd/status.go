package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mathis-dumont/horse-racing-prediction/internal/ingest"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent ingestion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		date, _ := cmd.Flags().GetString("date")
		limit, _ := cmd.Flags().GetInt("limit")
		if date != "" {
			if _, err := ingest.ParseDateCode(date); err != nil {
				return err
			}
		}

		pool, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := ingest.NewRunLog(pool).Recent(ctx, date, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tSTAGE\tSTATUS\tDONE\tFAILED\tEMPTY\tINSERTED\tSKIPPED\tSTARTED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
				e.DateCode, e.Stage, e.Status,
				e.RacesDone, e.RacesFailed, e.RacesEmpty,
				e.RowsInserted, e.RowsSkipped,
				e.StartedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().String("date", "", "restrict to one date (DDMMYYYY)")
	statusCmd.Flags().Int("limit", 20, "maximum entries to show")
	rootCmd.AddCommand(statusCmd)
}

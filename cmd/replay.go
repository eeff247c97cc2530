package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mathis-dumont/horse-racing-prediction/internal/ingest"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-process stored failed payloads",
	Long: `Re-process payloads saved by earlier runs, without refetching.

Payloads land in the fallback store when transformation or writing
failed; after the bug is fixed, replay drains them through the same
write paths the stages use. Successfully replayed payloads are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		stage, _ := cmd.Flags().GetString("stage")
		date, _ := cmd.Flags().GetString("date")
		if date != "" {
			if _, err := ingest.ParseDateCode(date); err != nil {
				return err
			}
		}

		env, cleanup, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		sum, err := ingest.Replay(ctx, env, ingest.FallbackFilter{Stage: stage, DateCode: date})
		if err != nil {
			return err
		}
		fmt.Println(sum)
		return nil
	},
}

func init() {
	replayCmd.Flags().String("stage", "", "restrict to one stage: program|participants|performances|reports")
	replayCmd.Flags().String("date", "", "restrict to one date (DDMMYYYY)")
	rootCmd.AddCommand(replayCmd)
}

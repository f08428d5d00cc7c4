package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/capscreen/internal/scoring"
)

var scoreJSON bool

var scoreCmd = &cobra.Command{
	Use:   "score <segment-id>",
	Short: "Score a segment's cap feasibility",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		segmentID := args[0]

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		seg, err := store.GetSegment(ctx, segmentID)
		if err != nil {
			return err
		}
		rows, err := store.GetInputs(ctx, segmentID)
		if err != nil {
			return err
		}

		in, missing := scoring.FromRows(rows)
		in.ApplyGeometryDefaults(seg.LengthFt)

		result, err := scoring.Evaluate(in)
		if err != nil {
			return err
		}

		if scoreJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		label := seg.RouteLabel
		if label == "" {
			label = "(unlabeled)"
		}
		fmt.Printf("=== %s (%.0f ft) ===\n", label, seg.LengthFt)
		fmt.Printf("Structural:  %2d / %d\n", result.Structural.Score, result.Structural.Max)
		fmt.Printf("Cost:        %2d / %d\n", result.Cost.Score, result.Cost.Max)
		fmt.Printf("Schedule:    %2d / %d\n", result.Schedule.Score, result.Schedule.Max)
		fmt.Printf("Urban:       %2d / %d\n", result.Urban.Score, result.Urban.Max)
		fmt.Printf("Political:   %2d / %d\n", result.Political.Score, result.Political.Max)
		fmt.Printf("Total:       %d / 100  (%s)\n", result.Total, result.Grade)

		if len(missing) > 0 {
			fmt.Printf("\nUnfilled inputs (%d): scored at the risky end of each scale\n", len(missing))
			for _, m := range missing {
				fmt.Printf("  %s\n", m)
			}
		}

		return nil
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "emit the scorecard as JSON")
	rootCmd.AddCommand(scoreCmd)
}

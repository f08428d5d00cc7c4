package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/capscreen/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show segment library build status",
	Long:  "Displays the per-status city counts and lists any cities stuck in BUILDING or ERROR.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		cities, err := store.ListCities(ctx, "", 0)
		if err != nil {
			return err
		}

		counts := map[model.LibraryStatus]int{}
		var stuck []model.City
		for _, c := range cities {
			counts[c.Status]++
			if c.Status == model.StatusBuilding || c.Status == model.StatusError {
				stuck = append(stuck, c)
			}
		}

		fmt.Println("=== Segment Library Status ===")
		fmt.Printf("Cities:      %d\n", len(cities))
		fmt.Printf("Not built:   %d\n", counts[model.StatusNotBuilt])
		fmt.Printf("Building:    %d\n", counts[model.StatusBuilding])
		fmt.Printf("Ready:       %d\n", counts[model.StatusReady])
		fmt.Printf("Error:       %d\n", counts[model.StatusError])

		if len(stuck) > 0 {
			fmt.Println()
			fmt.Println("Needs attention:")
			for _, c := range stuck {
				fmt.Printf("  %-25s %-10s %s\n", c.DisplayName, c.Status, c.ID)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

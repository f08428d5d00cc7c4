package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/capscreen/internal/boundary"
	"github.com/sells-group/capscreen/internal/seed"
)

var (
	seedShapefile  string
	seedNameField  string
	seedStateField string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the top-100 US city list",
	Long:  "Upserts the canonical top-100 city list with stable IDs. Optionally imports real city boundaries from a Census places shapefile; cities without one get synthetic analysis areas.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}

		var boundaries []boundary.Record
		if seedShapefile != "" {
			boundaries, err = boundary.Load(seedShapefile, seedNameField, seedStateField)
			if err != nil {
				return err
			}
			zap.L().Info("loaded boundary shapefile",
				zap.String("path", seedShapefile),
				zap.Int("records", len(boundaries)),
			)
		}

		return seed.Run(ctx, store, boundaries)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedShapefile, "shapefile", "", "city boundary shapefile (optional)")
	seedCmd.Flags().StringVar(&seedNameField, "name-field", "NAME", "DBF field holding the city name")
	seedCmd.Flags().StringVar(&seedStateField, "state-field", "STUSPS", "DBF field holding the state abbreviation")
	rootCmd.AddCommand(seedCmd)
}

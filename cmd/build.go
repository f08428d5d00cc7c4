package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/capscreen/internal/model"
)

var buildAll bool

var buildCmd = &cobra.Command{
	Use:   "build [city-id]",
	Short: "Build segment libraries from OpenStreetMap",
	Long:  "Fetches motorway geometry for a city's analysis area, splits it into screening segments, and seeds scoring inputs. Already-built cities are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !buildAll && len(args) == 0 {
			return eris.New("a city id is required unless --all is set")
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if !buildAll {
			status, err := env.Builder.EnsureBuilt(ctx, args[0])
			if err != nil {
				return err
			}
			zap.L().Info("build finished",
				zap.String("city_id", args[0]),
				zap.String("status", string(status)),
			)
			return nil
		}

		cities, err := env.Store.ListCities(ctx, "", 0)
		if err != nil {
			return err
		}

		limit := cfg.Build.MaxConcurrentCities
		if limit <= 0 {
			limit = 4
		}

		results := make([]model.LibraryStatus, len(cities))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)

		for i, city := range cities {
			g.Go(func() error {
				status, err := env.Builder.EnsureBuilt(gctx, city.ID)
				if err != nil {
					return eris.Wrapf(err, "build %s", city.DisplayName)
				}
				results[i] = status
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		counts := map[model.LibraryStatus]int{}
		for _, s := range results {
			counts[s]++
		}
		zap.L().Info("build sweep finished",
			zap.Int("cities", len(cities)),
			zap.Int("ready", counts[model.StatusReady]),
			zap.Int("error", counts[model.StatusError]),
			zap.Int("building", counts[model.StatusBuilding]),
		)
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildAll, "all", false, "build every seeded city")
	rootCmd.AddCommand(buildCmd)
}

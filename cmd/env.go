package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capscreen/internal/library"
	"github.com/sells-group/capscreen/internal/overpass"
)

// screenEnv holds the initialized store and builder shared by the
// serve/build/seed commands.
type screenEnv struct {
	Store   library.Store
	Builder *library.Builder
}

// Close releases resources held by the environment.
func (se *screenEnv) Close() {
	if se.Store != nil {
		_ = se.Store.Close()
	}
}

// openStore connects the configured backend. Postgres is the default;
// sqlite covers local screening runs without PostGIS.
func openStore(ctx context.Context) (library.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return library.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	case "sqlite":
		return library.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q (want postgres or sqlite)", cfg.Store.Driver)
	}
}

// initEnv sets up the store and the segment-library builder. Callers
// should defer env.Close().
func initEnv(ctx context.Context) (*screenEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	fetcher := overpass.NewClient(overpass.Options{
		BaseURL:    cfg.Overpass.BaseURL,
		UserAgent:  cfg.Overpass.UserAgent,
		Timeout:    time.Duration(cfg.Overpass.TimeoutSecs) * time.Second,
		RatePerSec: cfg.Overpass.RatePerSec,
	})

	builder := library.NewBuilder(st, fetcher, library.BuilderOptions{
		TagFilter:       cfg.Overpass.TagFilter,
		SegmentLengthFt: cfg.Build.SegmentLengthFt,
		FeetPerDegree:   cfg.Build.FeetPerDegree,
		SourceName:      cfg.Build.SourceName,
	})

	zap.L().Debug("environment initialized",
		zap.String("store_driver", cfg.Store.Driver),
	)

	return &screenEnv{Store: st, Builder: builder}, nil
}

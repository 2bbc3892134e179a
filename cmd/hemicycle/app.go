package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/seenimoa/hemicycle/internal/aggregate"
	"github.com/seenimoa/hemicycle/internal/config"
	"github.com/seenimoa/hemicycle/internal/datasource"
	"github.com/seenimoa/hemicycle/internal/export"
	"github.com/seenimoa/hemicycle/internal/pipeline"
	"github.com/seenimoa/hemicycle/internal/store"
	"github.com/seenimoa/hemicycle/internal/themes"
)

// newRegistry registers every known chamber source.
func newRegistry(cfg *config.Config) (*datasource.Registry, error) {
	reg := datasource.NewRegistry()
	an := datasource.NewAssembleeNationale(datasource.ANConfig{
		Chamber:     "AN",
		Legislature: cfg.Source.Legislature,
		BallotsURL:  cfg.Source.BallotsURL,
		ActorsURL:   cfg.Source.ActorsURL,
		CacheDir:    cfg.Source.CacheDir,
		Timeout:     cfg.Source.Timeout(),
		Concurrency: cfg.Source.Concurrency,
		MaxRetries:  cfg.Source.MaxRetries,
		MaxDepth:    cfg.Extract.MaxDepth,
	})
	if err := reg.Register(an); err != nil {
		return nil, err
	}
	return reg, nil
}

// buildPipeline wires the configured source, themes, exporter and, when
// withStore is set and a database is configured, the store. cleanup
// releases the store.
func buildPipeline(ctx context.Context, cfg *config.Config, limit int, withStore bool) (*pipeline.Pipeline, func(), error) {
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}
	src, err := reg.Get(cfg.Source.Chamber)
	if err != nil {
		return nil, nil, fmt.Errorf("%w (available: %v)", err, reg.List())
	}

	th, err := themes.Load(cfg.Output.ThemesFile)
	if err != nil {
		return nil, nil, err
	}

	order, ok := aggregate.ParseOrder(cfg.Aggregate.Order)
	if !ok {
		return nil, nil, fmt.Errorf("unknown aggregate order %q", cfg.Aggregate.Order)
	}

	cleanup := func() {}
	var st *store.Store
	if withStore && cfg.Database.Enabled() {
		st, err = openStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() {
			if err := st.Close(); err != nil {
				slog.Warn("closing store", "error", err)
			}
		}
	}

	p := pipeline.New(pipeline.Config{
		Source:   src,
		Themes:   th,
		Exporter: export.New(cfg.Output.DataDir),
		Store:    st,
		Order:    order,
		Limit:    limit,
	})
	return p, cleanup, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Database.Type, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := st.CreateSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func printStoreState(ctx context.Context, cfg *config.Config) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Printf("    Database:      unreachable (%v)\n", err)
		return
	}
	defer st.Close()

	run, err := st.LatestRun(ctx)
	if err != nil {
		fmt.Printf("    Database:      no run stored (%v)\n", err)
		return
	}
	fmt.Printf("    Last run:      %s, %s (%s ballots, %s deputies, %s groups)\n",
		run.ID,
		humanize.Time(run.GeneratedAt),
		humanize.Comma(int64(run.Ballots)),
		humanize.Comma(int64(run.Deputies)),
		humanize.Comma(int64(run.Groups)),
	)
}

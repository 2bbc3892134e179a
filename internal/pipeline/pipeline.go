// Package pipeline runs a full generation: fetch ballots from a source,
// tag themes, aggregate deputies and groups, export JSON and persist the
// run to the optional store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seenimoa/hemicycle/internal/aggregate"
	"github.com/seenimoa/hemicycle/internal/datasource"
	"github.com/seenimoa/hemicycle/internal/export"
	"github.com/seenimoa/hemicycle/internal/logging"
	"github.com/seenimoa/hemicycle/internal/store"
	"github.com/seenimoa/hemicycle/internal/themes"
	"github.com/seenimoa/hemicycle/pkg/models"
)

// Stage names reported to Progress.
const (
	StageFetch     = "fetch"
	StageThemes    = "themes"
	StageDeputies  = "deputies"
	StageGroups    = "groups"
	StageExport    = "export"
	StageStore     = "store"
	StageCompleted = "completed"
)

// Progress receives a stage name and a short detail when a stage starts.
type Progress func(stage, detail string)

// Pipeline wires the generation stages together.
type Pipeline struct {
	Source   datasource.Source
	Themes   *themes.Config
	Exporter *export.Exporter
	Store    *store.Store // nil disables persistence
	Order    aggregate.Order
	Limit    int

	now func() time.Time
}

// Config holds the parts needed to build a Pipeline.
type Config struct {
	Source   datasource.Source
	Themes   *themes.Config
	Exporter *export.Exporter
	Store    *store.Store
	Order    aggregate.Order
	Limit    int
}

// New returns a Pipeline. A nil theme config tags nothing and an empty
// order means chronological.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		Source:   cfg.Source,
		Themes:   cfg.Themes,
		Exporter: cfg.Exporter,
		Store:    cfg.Store,
		Order:    cfg.Order,
		Limit:    cfg.Limit,
		now:      time.Now,
	}
	if p.Themes == nil {
		p.Themes = &themes.Config{}
	}
	if p.Order == "" {
		p.Order = aggregate.OrderChronological
	}
	return p
}

// Result summarizes a run.
type Result struct {
	RunID    string
	Ballots  int
	Votes    int
	Deputies int
	Groups   int
	Duration time.Duration
	Dataset  *export.Dataset
}

// Run executes every stage in order. The first failing stage aborts the
// run with its error wrapped.
func (p *Pipeline) Run(ctx context.Context, progress Progress) (*Result, error) {
	if p.Source == nil {
		return nil, errors.New("pipeline: no source configured")
	}
	if p.Exporter == nil {
		return nil, errors.New("pipeline: no exporter configured")
	}
	report := func(stage, detail string) {
		if progress != nil {
			progress(stage, detail)
		}
	}

	start := p.clock()
	ctx = logging.AppendCtx(ctx, slog.String("chamber", p.Source.Chamber()))

	report(StageFetch, p.Source.Name())
	slog.InfoContext(ctx, "fetching ballots", "source", p.Source.Name(), "limit", p.Limit)
	ballots, err := p.Source.FetchBallots(ctx, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch ballots: %w", err)
	}

	report(StageThemes, fmt.Sprintf("%d ballots", len(ballots)))
	ballots = themes.Assign(ballots, p.Themes)

	ds, err := p.aggregate(ctx, ballots, report)
	if err != nil {
		return nil, err
	}
	ds.GeneratedAt = start.UTC()

	result, err := p.persist(ctx, ds, report)
	if err != nil {
		return nil, err
	}
	result.Duration = p.clock().Sub(start)

	report(StageCompleted, result.RunID)
	slog.InfoContext(ctx, "generation complete",
		"ballots", result.Ballots,
		"deputies", result.Deputies,
		"groups", result.Groups,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// Reaggregate reloads the exported ballots, recomputes the profiles and
// rewrites the export and store without contacting the source.
func (p *Pipeline) Reaggregate(ctx context.Context, progress Progress) (*Result, error) {
	if p.Exporter == nil {
		return nil, errors.New("pipeline: no exporter configured")
	}
	report := func(stage, detail string) {
		if progress != nil {
			progress(stage, detail)
		}
	}

	start := p.clock()
	ballots, err := p.Exporter.LoadBallots()
	if err != nil {
		return nil, fmt.Errorf("load ballots: %w", err)
	}

	ds, err := p.aggregate(ctx, ballots, report)
	if err != nil {
		return nil, err
	}
	ds.GeneratedAt = start.UTC()

	result, err := p.persist(ctx, ds, report)
	if err != nil {
		return nil, err
	}
	result.Duration = p.clock().Sub(start)
	report(StageCompleted, result.RunID)
	return result, nil
}

func (p *Pipeline) aggregate(ctx context.Context, ballots []models.BallotRecord, report Progress) (*export.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(StageDeputies, fmt.Sprintf("%d ballots", len(ballots)))
	deputies := aggregate.Deputies(ballots, aggregate.WithOrder(p.Order))

	report(StageGroups, fmt.Sprintf("%d deputies", len(deputies)))
	groups := aggregate.Groups(ballots, deputies)

	slog.DebugContext(ctx, "aggregation done", "deputies", len(deputies), "groups", len(groups))
	return &export.Dataset{Ballots: ballots, Deputies: deputies, Groups: groups}, nil
}

func (p *Pipeline) persist(ctx context.Context, ds *export.Dataset, report Progress) (*Result, error) {
	report(StageExport, p.Exporter.DataDir)
	if err := p.Exporter.WriteAll(ds); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	result := &Result{
		Ballots:  len(ds.Ballots),
		Deputies: len(ds.Deputies),
		Groups:   len(ds.Groups),
		Dataset:  ds,
	}
	for _, b := range ds.Ballots {
		result.Votes += b.Tally().Total()
	}

	if p.Store != nil {
		report(StageStore, "")
		runID, err := p.Store.SaveRun(ctx, ds.GeneratedAt, ds.Ballots, ds.Deputies, ds.Groups)
		if err != nil {
			return nil, fmt.Errorf("store run: %w", err)
		}
		result.RunID = runID
	}
	return result, nil
}

func (p *Pipeline) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/hemicycle/internal/aggregate"
	"github.com/seenimoa/hemicycle/internal/datasource"
	"github.com/seenimoa/hemicycle/internal/export"
	"github.com/seenimoa/hemicycle/internal/store"
	"github.com/seenimoa/hemicycle/internal/themes"
	"github.com/seenimoa/hemicycle/pkg/models"
)

func fixtureSource() *datasource.Static {
	ref := models.NewReferential()
	ref.Actors["PA1"] = models.Actor{ID: "PA1", Name: "Alice Martin"}
	ref.Actors["PA2"] = models.Actor{ID: "PA2", Name: "Bruno Petit"}
	ref.Actors["PA3"] = models.Actor{ID: "PA3", Name: "Chloé Roux"}
	ref.Organs["G1"] = models.Organ{ID: "G1", Name: "Groupe Un", Acronym: "G1"}
	ref.Organs["G2"] = models.Organ{ID: "G2", Name: "Groupe Deux", Acronym: "G2"}

	return &datasource.Static{
		ChamberCode: "AN",
		Referential: ref,
		Ballots: []models.BallotRecord{
			{ID: "AN-17-1", Date: "2024-01-10", Chamber: "AN", Title: "Projet de loi relatif à l'énergie", Votes: []models.VoteRecord{
				{PersonID: "PA1", Position: models.PositionFor, Group: "G1"},
				{PersonID: "PA2", Position: models.PositionFor, Group: "G1"},
				{PersonID: "PA3", Position: models.PositionAgainst, Group: "G2"},
			}},
			{ID: "AN-17-2", Date: "2024-02-03", Chamber: "AN", Title: "Budget de la santé", Votes: []models.VoteRecord{
				{PersonID: "PA1", Position: models.PositionAgainst, Group: "G1"},
				{PersonID: "PA2", Position: models.PositionFor, Group: "G1"},
				{PersonID: "PA3", Position: models.PositionAgainst, Group: "G2"},
			}},
		},
	}
}

func fixtureThemes() *themes.Config {
	return &themes.Config{Themes: []themes.Theme{
		{ID: "energie", Label: "Énergie", Keywords: []string{"energie"}},
		{ID: "sante", Label: "Santé", Keywords: []string{"santé"}},
	}}
}

func TestRunExportsAndStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.Open(ctx, store.TypeSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.CreateSchema(ctx))

	p := New(Config{
		Source:   fixtureSource(),
		Themes:   fixtureThemes(),
		Exporter: export.New(dir),
		Store:    st,
		Limit:    10,
	})
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	var stages []string
	res, err := p.Run(ctx, func(stage, _ string) { stages = append(stages, stage) })
	require.NoError(t, err)

	assert.Equal(t, []string{StageFetch, StageThemes, StageDeputies, StageGroups, StageExport, StageStore, StageCompleted}, stages)
	assert.Equal(t, 2, res.Ballots)
	assert.Equal(t, 6, res.Votes)
	assert.Equal(t, 3, res.Deputies)
	assert.Equal(t, 2, res.Groups)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, fixed, res.Dataset.GeneratedAt)

	// most recent first, themes assigned, names enriched
	first := res.Dataset.Ballots[0]
	assert.Equal(t, "AN-17-2", first.ID)
	assert.Equal(t, []string{"sante"}, first.Themes)
	assert.Equal(t, []string{"energie"}, res.Dataset.Ballots[1].Themes)
	assert.Equal(t, "Alice Martin", first.Votes[0].Name)

	for _, name := range []string{export.IndexFile, export.PeopleFile, export.DeputiesFile, export.GroupsFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.FileExists(t, filepath.Join(dir, export.BallotsDir, "2024-01.json"))

	run, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, 2, run.Ballots)

	dep, err := st.GetDeputy(ctx, "PA1")
	require.NoError(t, err)
	assert.Equal(t, 1, dep.Stats.For)
	assert.Equal(t, 1, dep.Stats.Against)
}

func TestRunIgnoresUnknownPosition(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, store.TypeSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.CreateSchema(ctx))

	src := fixtureSource()
	src.Ballots[0].Votes = append(src.Ballots[0].Votes, models.VoteRecord{PersonID: "PA9", Position: "MAYBE", Group: "G1"})

	p := New(Config{Source: src, Exporter: export.New(t.TempDir()), Store: st})
	res, err := p.Run(ctx, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 6, res.Votes)

	b, err := st.GetBallot(ctx, "AN-17-1")
	require.NoError(t, err)
	assert.Len(t, b.Votes, 3)

	dep, err := st.GetDeputy(ctx, "PA1")
	require.NoError(t, err)
	assert.Equal(t, 2, dep.Stats.TotalVotes)
}

func TestRunChronologicalOrderKeepsLatestGroup(t *testing.T) {
	src := fixtureSource()
	// PA3 switched to G1 in the latest ballot
	src.Ballots[1].Votes[2].Group = "G1"

	p := New(Config{Source: src, Exporter: export.New(t.TempDir())})
	assert.Equal(t, aggregate.OrderChronological, p.Order)

	res, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	var found bool
	for _, d := range res.Dataset.Deputies {
		if d.PersonID == "PA3" {
			found = true
			assert.Equal(t, "G1", d.Group)
		}
	}
	assert.True(t, found)
	assert.Empty(t, res.RunID)
}

func TestRunFetchError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(Config{Source: fixtureSource(), Exporter: export.New(t.TempDir())})
	_, err := p.Run(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Contains(t, err.Error(), "fetch ballots")
}

func TestRunRequiresSourceAndExporter(t *testing.T) {
	_, err := New(Config{Exporter: export.New(t.TempDir())}).Run(context.Background(), nil)
	assert.Error(t, err)

	_, err = New(Config{Source: fixtureSource()}).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestReaggregate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := New(Config{Source: fixtureSource(), Exporter: export.New(dir)})

	_, err := p.Run(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, export.DeputiesFile)))

	res, err := p.Reaggregate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deputies)
	assert.FileExists(t, filepath.Join(dir, export.DeputiesFile))

	ds, err := export.New(dir).Load()
	require.NoError(t, err)
	assert.Len(t, ds.Deputies, 3)
	assert.Len(t, ds.Groups, 2)
}

func TestReaggregateWithoutData(t *testing.T) {
	p := New(Config{Exporter: export.New(t.TempDir())})
	_, err := p.Reaggregate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, export.ErrNoData))
}

package aggregate

import (
	"math"
	"reflect"
	"testing"

	"github.com/seenimoa/hemicycle/pkg/models"
)

func vote(pid string, p models.Position, group string) models.VoteRecord {
	return models.VoteRecord{PersonID: pid, Position: p, Group: group, Name: "Deputy " + pid}
}

// scenario is the two-ballot, three-voter corpus used across tests.
func scenario() []models.BallotRecord {
	return []models.BallotRecord{
		{
			ID: "B1", Date: "2024-01-10", Chamber: "AN", Title: "First",
			Votes: []models.VoteRecord{
				vote("A", models.PositionFor, "G1"),
				vote("B", models.PositionFor, "G1"),
				vote("C", models.PositionAgainst, "G2"),
			},
		},
		{
			ID: "B2", Date: "2024-02-01", Chamber: "AN", Title: "Second",
			Votes: []models.VoteRecord{
				vote("A", models.PositionAgainst, "G1"),
				vote("B", models.PositionFor, "G1"),
				vote("C", models.PositionFor, "G2"),
			},
		},
	}
}

func findDeputy(t *testing.T, ds []models.DeputyProfile, id string) models.DeputyProfile {
	t.Helper()
	for _, d := range ds {
		if d.PersonID == id {
			return d
		}
	}
	t.Fatalf("deputy %s not found", id)
	return models.DeputyProfile{}
}

func findGroup(t *testing.T, gs []models.GroupProfile, id string) models.GroupProfile {
	t.Helper()
	for _, g := range gs {
		if g.GroupID == id {
			return g
		}
	}
	t.Fatalf("group %s not found", id)
	return models.GroupProfile{}
}

// ── Deputies ──

func TestDeputiesScenario(t *testing.T) {
	ds := Deputies(scenario())
	if len(ds) != 3 {
		t.Fatalf("profiles: got %d, want 3", len(ds))
	}

	a := findDeputy(t, ds, "A")
	if a.Stats.For != 1 || a.Stats.Against != 1 {
		t.Errorf("A counts: got for=%d against=%d, want 1/1", a.Stats.For, a.Stats.Against)
	}
	if a.Stats.TotalVotes != 2 {
		t.Errorf("A total: got %d, want 2", a.Stats.TotalVotes)
	}
	if a.Stats.ParticipationRate != 100 {
		t.Errorf("A participation: got %v, want 100", a.Stats.ParticipationRate)
	}
	if a.Stats.PctFor != 50 || a.Stats.PctAgainst != 50 {
		t.Errorf("A pct: got %v/%v, want 50/50", a.Stats.PctFor, a.Stats.PctAgainst)
	}
	if a.Chamber != "AN" {
		t.Errorf("A chamber: got %q, want AN", a.Chamber)
	}
}

func TestDeputiesSortedByNameThenID(t *testing.T) {
	ballots := []models.BallotRecord{{
		ID: "B1", Date: "2024-01-01",
		Votes: []models.VoteRecord{
			{PersonID: "P3", Position: models.PositionFor, Name: "Zoé"},
			{PersonID: "P2", Position: models.PositionFor, Name: "Anne"},
			{PersonID: "P9", Position: models.PositionFor},
			{PersonID: "P1", Position: models.PositionFor, Name: "Anne"},
		},
	}}

	var got []string
	for _, d := range Deputies(ballots) {
		got = append(got, d.PersonID)
	}
	want := []string{"P9", "P1", "P2", "P3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order: got %v, want %v", got, want)
	}
}

func TestDeputiesLastWriteWins(t *testing.T) {
	ballots := []models.BallotRecord{
		{ID: "B2", Date: "2024-03-01", Votes: []models.VoteRecord{
			{PersonID: "P1", Position: models.PositionFor, Name: "New", Group: "G2", GroupName: "Group two", GroupAcronym: "G2A"},
		}},
		{ID: "B1", Date: "2024-01-01", Votes: []models.VoteRecord{
			{PersonID: "P1", Position: models.PositionFor, Name: "Old", Group: "G1", GroupName: "Group one", GroupAcronym: "G1A"},
		}},
		{ID: "B3", Date: "2024-02-01", Votes: []models.VoteRecord{
			{PersonID: "P1", Position: models.PositionAgainst},
		}},
	}

	tests := []struct {
		name      string
		order     Order
		wantName  string
		wantGroup string
		wantAcr   string
	}{
		{"input order", OrderInput, "Old", "G1", "G1A"},
		{"chronological", OrderChronological, "New", "G2", "G2A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Deputies(ballots, WithOrder(tt.order))[0]
			if d.Name != tt.wantName {
				t.Errorf("name: got %q, want %q", d.Name, tt.wantName)
			}
			if d.Group != tt.wantGroup || d.GroupAcronym != tt.wantAcr {
				t.Errorf("group: got %q/%q, want %q/%q", d.Group, d.GroupAcronym, tt.wantGroup, tt.wantAcr)
			}
			if d.Stats.TotalVotes != 3 {
				t.Errorf("total: got %d, want 3", d.Stats.TotalVotes)
			}
		})
	}

	if ballots[0].ID != "B2" {
		t.Error("chronological ordering mutated the caller's slice")
	}
}

func TestDeputiesGroupOverwrittenAsUnit(t *testing.T) {
	ballots := []models.BallotRecord{
		{ID: "B1", Votes: []models.VoteRecord{
			{PersonID: "P1", Position: models.PositionFor, Group: "G1", GroupName: "One", GroupAcronym: "ONE"},
		}},
		{ID: "B2", Votes: []models.VoteRecord{
			{PersonID: "P1", Position: models.PositionFor, Group: "G2"},
		}},
	}
	d := Deputies(ballots)[0]
	if d.Group != "G2" || d.GroupName != "" || d.GroupAcronym != "" {
		t.Errorf("got group=%q name=%q acronym=%q, want G2 with cleared labels", d.Group, d.GroupName, d.GroupAcronym)
	}
}

func TestDeputiesNonVotingParticipation(t *testing.T) {
	ballots := []models.BallotRecord{
		{ID: "B1", Votes: []models.VoteRecord{{PersonID: "P1", Position: models.PositionNonVoting}}},
		{ID: "B2", Votes: []models.VoteRecord{{PersonID: "P1", Position: models.PositionFor}}},
		{ID: "B3", Votes: []models.VoteRecord{{PersonID: "P1", Position: models.PositionAbstain}}},
	}
	s := Deputies(ballots)[0].Stats
	if s.ParticipationRate != 66.7 {
		t.Errorf("participation: got %v, want 66.7", s.ParticipationRate)
	}
	if s.PctNonVoting != 33.3 {
		t.Errorf("pct nonvoting: got %v, want 33.3", s.PctNonVoting)
	}
}

func TestDeputiesIgnoresUnknownPosition(t *testing.T) {
	ballots := []models.BallotRecord{{ID: "B1", Votes: []models.VoteRecord{
		{PersonID: "P1", Position: models.Position("MAYBE")},
	}}}
	ds := Deputies(ballots)
	if len(ds) != 1 {
		t.Fatalf("profiles: got %d, want 1", len(ds))
	}
	s := ds[0].Stats
	if s.TotalVotes != 0 || s.PctFor != 0 || s.ParticipationRate != 0 {
		t.Errorf("zero-total stats: got %+v", s)
	}
}

// ── Groups ──

func TestGroupsScenario(t *testing.T) {
	ballots := scenario()
	gs := Groups(ballots, Deputies(ballots))

	g1 := findGroup(t, gs, "G1")
	if g1.MemberCount != 2 {
		t.Errorf("G1 members: got %d, want 2", g1.MemberCount)
	}
	if g1.Cohesion != 75.0 {
		t.Errorf("G1 cohesion: got %v, want 75.0", g1.Cohesion)
	}
	if g1.Stats.TotalGroupVotes != 4 || g1.Stats.For != 3 || g1.Stats.Against != 1 {
		t.Errorf("G1 stats: got %+v", g1.Stats)
	}

	if len(g1.Ballots) != 2 {
		t.Fatalf("G1 ballots: got %d, want 2", len(g1.Ballots))
	}
	if g1.Ballots[0].BallotID != "B2" || g1.Ballots[1].BallotID != "B1" {
		t.Errorf("ballots not most-recent first: %+v", g1.Ballots)
	}
	// B2 is split 1/1: FOR wins the tie.
	if g1.Ballots[0].MajorityPosition != models.PositionFor {
		t.Errorf("B2 majority: got %q, want FOR", g1.Ballots[0].MajorityPosition)
	}
	if g1.Ballots[1].Title != "First" || g1.Ballots[1].Date != "2024-01-10" {
		t.Errorf("B1 breakdown metadata: got %+v", g1.Ballots[1])
	}

	g2 := findGroup(t, gs, "G2")
	if g2.Cohesion != 100 {
		t.Errorf("G2 cohesion: got %v, want 100", g2.Cohesion)
	}

	if gs[0].GroupID != "G1" {
		t.Errorf("largest group first: got %s", gs[0].GroupID)
	}
}

func TestGroupsUnanimousBallot(t *testing.T) {
	ballots := []models.BallotRecord{{ID: "B1", Date: "2024-05-05", Votes: []models.VoteRecord{
		vote("A", models.PositionAgainst, "G1"),
		vote("B", models.PositionAgainst, "G1"),
		vote("C", models.PositionAgainst, "G1"),
	}}}
	g := Groups(ballots, Deputies(ballots))[0]
	if g.Cohesion != 100.0 {
		t.Errorf("cohesion: got %v, want 100", g.Cohesion)
	}
	if g.Ballots[0].MajorityPosition != models.PositionAgainst {
		t.Errorf("majority: got %q, want AGAINST", g.Ballots[0].MajorityPosition)
	}
}

func TestGroupsMajorityTieBreak(t *testing.T) {
	tests := []struct {
		name   string
		counts models.PositionCounts
		want   models.Position
	}{
		{"for beats against", models.PositionCounts{For: 2, Against: 2}, models.PositionFor},
		{"against beats abstain", models.PositionCounts{Against: 1, Abstain: 1}, models.PositionAgainst},
		{"abstain beats nonvoting", models.PositionCounts{Abstain: 3, NonVoting: 3}, models.PositionAbstain},
		{"clear nonvoting", models.PositionCounts{For: 1, NonVoting: 4}, models.PositionNonVoting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := majority(tt.counts); got != tt.want {
				t.Errorf("majority(%+v): got %q, want %q", tt.counts, got, tt.want)
			}
		})
	}
}

func TestGroupsMembershipFromDeputiesOnly(t *testing.T) {
	ballots := []models.BallotRecord{{ID: "B1", Votes: []models.VoteRecord{
		vote("A", models.PositionFor, "G1"),
		{PersonID: "B", Position: models.PositionFor},
	}}}
	deputies := []models.DeputyProfile{
		{PersonID: "A", Name: "Alice", Group: "G1", GroupName: "Group one", GroupAcronym: "G1A"},
		{PersonID: "B", Name: "Bob"},
	}
	// a vote record naming a group no deputy resolves to
	ballots[0].Votes = append(ballots[0].Votes, vote("X", models.PositionAgainst, "GHOST"))

	gs := Groups(ballots, deputies)
	if len(gs) != 1 {
		t.Fatalf("groups: got %d, want 1", len(gs))
	}
	g := gs[0]
	if g.Name != "Group one" || g.Acronym != "G1A" {
		t.Errorf("labels: got %q/%q", g.Name, g.Acronym)
	}
	want := []models.GroupMember{{PersonID: "A", Name: "Alice"}}
	if !reflect.DeepEqual(g.Members, want) {
		t.Errorf("members: got %+v, want %+v", g.Members, want)
	}
}

func TestGroupsUnknownNameAndNoBallots(t *testing.T) {
	deputies := []models.DeputyProfile{{PersonID: "A", Group: "G9"}}
	gs := Groups(nil, deputies)
	if len(gs) != 1 {
		t.Fatalf("groups: got %d, want 1", len(gs))
	}
	if gs[0].Name != models.UnknownGroupName {
		t.Errorf("name: got %q, want %q", gs[0].Name, models.UnknownGroupName)
	}
	if gs[0].Cohesion != 0 || len(gs[0].Ballots) != 0 {
		t.Errorf("expected zero cohesion and no ballots, got %v / %d", gs[0].Cohesion, len(gs[0].Ballots))
	}
}

func TestGroupsSortedByMemberCountThenName(t *testing.T) {
	deputies := []models.DeputyProfile{
		{PersonID: "1", Group: "GB", GroupName: "Beta"},
		{PersonID: "2", Group: "GA", GroupName: "Alpha"},
		{PersonID: "3", Group: "GC", GroupName: "Gamma"},
		{PersonID: "4", Group: "GC", GroupName: "Gamma"},
	}
	var got []string
	for _, g := range Groups(nil, deputies) {
		got = append(got, g.GroupID)
	}
	want := []string{"GC", "GA", "GB"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order: got %v, want %v", got, want)
	}
}

// ── Properties ──

func TestEmptyCorpus(t *testing.T) {
	ds := Deputies(nil)
	if len(ds) != 0 {
		t.Errorf("deputies: got %d, want 0", len(ds))
	}
	if gs := Groups(nil, ds); len(gs) != 0 {
		t.Errorf("groups: got %d, want 0", len(gs))
	}
}

func TestPercentagesSumTo100(t *testing.T) {
	positions := models.Positions
	var ballots []models.BallotRecord
	for i := 0; i < 7; i++ {
		b := models.BallotRecord{ID: string(rune('a' + i)), Date: "2024-01-0" + string(rune('1'+i))}
		for j, pid := range []string{"A", "B", "C"} {
			b.Votes = append(b.Votes, vote(pid, positions[(i*(j+1))%len(positions)], "G"+pid))
		}
		ballots = append(ballots, b)
	}

	ds := Deputies(ballots)
	for _, d := range ds {
		s := d.Stats
		sum := s.PctFor + s.PctAgainst + s.PctAbstain + s.PctNonVoting
		if math.Abs(sum-100) > 0.2 {
			t.Errorf("deputy %s: pct sum %v", d.PersonID, sum)
		}
	}
	for _, g := range Groups(ballots, ds) {
		s := g.Stats
		sum := s.PctFor + s.PctAgainst + s.PctAbstain + s.PctNonVoting
		if math.Abs(sum-100) > 0.2 {
			t.Errorf("group %s: pct sum %v", g.GroupID, sum)
		}
		if g.Cohesion < 0 || g.Cohesion > 100 {
			t.Errorf("group %s: cohesion %v out of range", g.GroupID, g.Cohesion)
		}
	}
}

func TestAggregationIsIdempotent(t *testing.T) {
	ballots := scenario()
	d1, d2 := Deputies(ballots), Deputies(ballots)
	if !reflect.DeepEqual(d1, d2) {
		t.Error("deputies differ between runs")
	}
	if !reflect.DeepEqual(Groups(ballots, d1), Groups(ballots, d2)) {
		t.Error("groups differ between runs")
	}
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		in   string
		want Order
		ok   bool
	}{
		{"", OrderInput, true},
		{"input", OrderInput, true},
		{"chronological", OrderChronological, true},
		{"random", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseOrder(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseOrder(%q): got %q,%v, want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

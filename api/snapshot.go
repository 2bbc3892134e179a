package api

import (
	"slices"
	"time"

	"github.com/seenimoa/hemicycle/internal/export"
	"github.com/seenimoa/hemicycle/pkg/models"
)

// Snapshot is the read-only dataset served by the API. A refresh builds a
// new Snapshot and swaps it in; a Snapshot is never mutated once built.
type Snapshot struct {
	GeneratedAt time.Time
	Index       export.Index
	Deputies    []models.DeputyProfile
	Groups      []models.GroupProfile

	ballots  map[string]*models.BallotRecord
	deputies map[string]*models.DeputyProfile
	groups   map[string]*models.GroupProfile
}

// NewSnapshot indexes ds. A nil dataset gives an empty snapshot.
func NewSnapshot(ds *export.Dataset) *Snapshot {
	if ds == nil {
		ds = &export.Dataset{}
	}
	var generatedAt string
	if !ds.GeneratedAt.IsZero() {
		generatedAt = ds.GeneratedAt.UTC().Format(time.RFC3339)
	}

	s := &Snapshot{
		GeneratedAt: ds.GeneratedAt,
		Index:       export.BuildIndex(generatedAt, ds.Ballots),
		Deputies:    ds.Deputies,
		Groups:      ds.Groups,
		ballots:     make(map[string]*models.BallotRecord, len(ds.Ballots)),
		deputies:    make(map[string]*models.DeputyProfile, len(ds.Deputies)),
		groups:      make(map[string]*models.GroupProfile, len(ds.Groups)),
	}
	if s.Deputies == nil {
		s.Deputies = []models.DeputyProfile{}
	}
	if s.Groups == nil {
		s.Groups = []models.GroupProfile{}
	}
	for i := range ds.Ballots {
		s.ballots[ds.Ballots[i].ID] = &ds.Ballots[i]
	}
	for i := range s.Deputies {
		s.deputies[s.Deputies[i].PersonID] = &s.Deputies[i]
	}
	for i := range s.Groups {
		s.groups[s.Groups[i].GroupID] = &s.Groups[i]
	}
	return s
}

// Ballot returns the full ballot with votes.
func (s *Snapshot) Ballot(id string) (*models.BallotRecord, bool) {
	b, ok := s.ballots[id]
	return b, ok
}

// Deputy returns the profile of a person.
func (s *Snapshot) Deputy(id string) (*models.DeputyProfile, bool) {
	d, ok := s.deputies[id]
	return d, ok
}

// Group returns the profile of a group.
func (s *Snapshot) Group(id string) (*models.GroupProfile, bool) {
	g, ok := s.groups[id]
	return g, ok
}

// FilterBallots returns index entries matching theme and month. Empty
// filters match everything.
func (s *Snapshot) FilterBallots(theme, month string) []export.IndexEntry {
	out := make([]export.IndexEntry, 0, len(s.Index.Ballots))
	for _, e := range s.Index.Ballots {
		if month != "" && (len(e.Date) < len(month) || e.Date[:len(month)] != month) {
			continue
		}
		if theme != "" && !slices.Contains(e.Themes, theme) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// DeputiesOf returns the deputies whose group id or acronym equals group.
func (s *Snapshot) DeputiesOf(group string) []models.DeputyProfile {
	if group == "" {
		return s.Deputies
	}
	out := []models.DeputyProfile{}
	for _, d := range s.Deputies {
		if d.Group == group || (d.GroupAcronym != "" && d.GroupAcronym == group) {
			out = append(out, d)
		}
	}
	return out
}

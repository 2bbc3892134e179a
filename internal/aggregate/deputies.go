package aggregate

import (
	"sort"

	"github.com/seenimoa/hemicycle/pkg/models"
)

// deputyAcc accumulates one voter's observations.
type deputyAcc struct {
	profile models.DeputyProfile
	counts  models.PositionCounts
}

// upsertDeputy records one vote, creating the accumulator on first sight.
// A non-empty name overwrites the current one; a non-empty group overwrites
// group, group name and acronym together.
func upsertDeputy(accs map[string]*deputyAcc, order *[]string, chamber string, v models.VoteRecord) {
	acc, ok := accs[v.PersonID]
	if !ok {
		acc = &deputyAcc{profile: models.DeputyProfile{
			PersonID:     v.PersonID,
			Name:         v.Name,
			Group:        v.Group,
			GroupName:    v.GroupName,
			GroupAcronym: v.GroupAcronym,
			Chamber:      chamber,
		}}
		accs[v.PersonID] = acc
		*order = append(*order, v.PersonID)
	}

	if v.Name != "" {
		acc.profile.Name = v.Name
	}
	if v.Group != "" {
		acc.profile.Group = v.Group
		acc.profile.GroupName = v.GroupName
		acc.profile.GroupAcronym = v.GroupAcronym
	}
	acc.counts.Add(v.Position)
}

// Deputies folds ballots into one profile per distinct voter id, sorted by
// (name, person id).
func Deputies(ballots []models.BallotRecord, opts ...Option) []models.DeputyProfile {
	o := options{order: OrderInput}
	for _, fn := range opts {
		fn(&o)
	}
	if o.order == OrderChronological {
		ballots = chronological(ballots)
	}

	accs := make(map[string]*deputyAcc)
	var order []string
	for _, b := range ballots {
		for _, v := range b.Votes {
			if v.PersonID == "" {
				continue
			}
			upsertDeputy(accs, &order, b.Chamber, v)
		}
	}

	out := make([]models.DeputyProfile, 0, len(order))
	for _, id := range order {
		acc := accs[id]
		acc.profile.Stats = deputyStats(acc.counts)
		out = append(out, acc.profile)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out
}

func deputyStats(c models.PositionCounts) models.DeputyStats {
	total := c.Total()
	s := models.DeputyStats{
		TotalVotes:   total,
		For:          c.For,
		Against:      c.Against,
		Abstain:      c.Abstain,
		NonVoting:    c.NonVoting,
		PctFor:       pct(c.For, total),
		PctAgainst:   pct(c.Against, total),
		PctAbstain:   pct(c.Abstain, total),
		PctNonVoting: pct(c.NonVoting, total),
	}
	s.ParticipationRate = pct(total-c.NonVoting, total)
	return s
}

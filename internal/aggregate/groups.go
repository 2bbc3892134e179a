package aggregate

import (
	"sort"

	"github.com/seenimoa/hemicycle/pkg/models"
)

// groupAcc accumulates one group's membership and tallies.
type groupAcc struct {
	profile models.GroupProfile
	members map[string]string
	counts  models.PositionCounts
	ballots map[string]*ballotTally
	order   []string
}

// ballotTally is a group's sub-tally on one ballot.
type ballotTally struct {
	id, date, title string
	counts          models.PositionCounts
}

func (g *groupAcc) tally(b *models.BallotRecord, p models.Position) {
	g.counts.Add(p)
	bt, ok := g.ballots[b.ID]
	if !ok {
		bt = &ballotTally{id: b.ID, date: b.Date, title: b.Title}
		g.ballots[b.ID] = bt
		g.order = append(g.order, b.ID)
	}
	bt.counts.Add(p)
}

// Groups builds one profile per group that is some deputy's resolved group.
// Vote records naming any other group are ignored. The result is sorted by
// member count descending, then name.
func Groups(ballots []models.BallotRecord, deputies []models.DeputyProfile) []models.GroupProfile {
	accs := make(map[string]*groupAcc)
	var ids []string

	for _, d := range deputies {
		if d.Group == "" {
			continue
		}
		g, ok := accs[d.Group]
		if !ok {
			name := d.GroupName
			if name == "" {
				name = models.UnknownGroupName
			}
			g = &groupAcc{
				profile: models.GroupProfile{
					GroupID: d.Group,
					Acronym: d.GroupAcronym,
					Name:    name,
				},
				members: make(map[string]string),
				ballots: make(map[string]*ballotTally),
			}
			accs[d.Group] = g
			ids = append(ids, d.Group)
		}
		g.members[d.PersonID] = d.Name
	}

	for i := range ballots {
		b := &ballots[i]
		for _, v := range b.Votes {
			if g, ok := accs[v.Group]; ok {
				g.tally(b, v.Position)
			}
		}
	}

	out := make([]models.GroupProfile, 0, len(ids))
	for _, id := range ids {
		out = append(out, accs[id].finish())
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MemberCount != out[j].MemberCount {
			return out[i].MemberCount > out[j].MemberCount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// finish derives statistics, cohesion and the ordered breakdowns.
func (g *groupAcc) finish() models.GroupProfile {
	p := g.profile

	p.Members = make([]models.GroupMember, 0, len(g.members))
	for id, name := range g.members {
		p.Members = append(p.Members, models.GroupMember{PersonID: id, Name: name})
	}
	sort.Slice(p.Members, func(i, j int) bool {
		if p.Members[i].Name != p.Members[j].Name {
			return p.Members[i].Name < p.Members[j].Name
		}
		return p.Members[i].PersonID < p.Members[j].PersonID
	})
	p.MemberCount = len(p.Members)

	total := g.counts.Total()
	p.Stats = models.GroupStats{
		TotalGroupVotes: total,
		For:             g.counts.For,
		Against:         g.counts.Against,
		Abstain:         g.counts.Abstain,
		NonVoting:       g.counts.NonVoting,
		PctFor:          pct(g.counts.For, total),
		PctAgainst:      pct(g.counts.Against, total),
		PctAbstain:      pct(g.counts.Abstain, total),
		PctNonVoting:    pct(g.counts.NonVoting, total),
	}

	var (
		shares float64
		n      int
	)
	p.Ballots = make([]models.GroupBallot, 0, len(g.order))
	for _, id := range g.order {
		bt := g.ballots[id]
		gb := models.GroupBallot{
			BallotID:    bt.id,
			Date:        bt.date,
			Title:       bt.title,
			GroupCounts: bt.counts,
		}
		if t := bt.counts.Total(); t > 0 {
			pos, top := majority(bt.counts)
			gb.MajorityPosition = pos
			shares += float64(top) / float64(t)
			n++
		}
		p.Ballots = append(p.Ballots, gb)
	}
	if n > 0 {
		p.Cohesion = round1(shares / float64(n) * 100)
	}

	sort.SliceStable(p.Ballots, func(i, j int) bool {
		if p.Ballots[i].Date != p.Ballots[j].Date {
			return p.Ballots[i].Date > p.Ballots[j].Date
		}
		return p.Ballots[i].BallotID > p.Ballots[j].BallotID
	})
	return p
}

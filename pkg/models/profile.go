package models

// DeputyStats holds a deputy's vote counts and derived percentages.
type DeputyStats struct {
	TotalVotes        int     `json:"total_votes"`
	For               int     `json:"for"`
	Against           int     `json:"against"`
	Abstain           int     `json:"abstain"`
	NonVoting         int     `json:"nonvoting"`
	PctFor            float64 `json:"pct_for"`
	PctAgainst        float64 `json:"pct_against"`
	PctAbstain        float64 `json:"pct_abstain"`
	PctNonVoting      float64 `json:"pct_nonvoting"`
	ParticipationRate float64 `json:"participation_rate"`
}

// DeputyProfile aggregates every vote of one voter across the corpus.
type DeputyProfile struct {
	PersonID     string      `json:"person_id"`
	Name         string      `json:"name"`
	Group        string      `json:"group,omitempty"`
	GroupAcronym string      `json:"group_acronym,omitempty"`
	GroupName    string      `json:"group_name,omitempty"`
	Chamber      string      `json:"chamber"`
	Stats        DeputyStats `json:"stats"`
}

// GroupStats holds a group's overall vote counts and percentages.
type GroupStats struct {
	TotalGroupVotes int     `json:"total_group_votes"`
	For             int     `json:"for"`
	Against         int     `json:"against"`
	Abstain         int     `json:"abstain"`
	NonVoting       int     `json:"nonvoting"`
	PctFor          float64 `json:"pct_for"`
	PctAgainst      float64 `json:"pct_against"`
	PctAbstain      float64 `json:"pct_abstain"`
	PctNonVoting    float64 `json:"pct_nonvoting"`
}

// GroupMember is one entry of a group's membership list.
type GroupMember struct {
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
}

// GroupBallot is a group's breakdown on a single ballot.
type GroupBallot struct {
	BallotID         string         `json:"scrutin_id"`
	Date             string         `json:"date"`
	Title            string         `json:"title"`
	GroupCounts      PositionCounts `json:"group_counts"`
	MajorityPosition Position       `json:"majority_position,omitempty"`
}

// GroupProfile aggregates the votes of one political group.
type GroupProfile struct {
	GroupID     string        `json:"group_id"`
	Acronym     string        `json:"acronym"`
	Name        string        `json:"name"`
	MemberCount int           `json:"member_count"`
	Members     []GroupMember `json:"members"`
	Stats       GroupStats    `json:"stats"`
	Cohesion    float64       `json:"cohesion"`
	Ballots     []GroupBallot `json:"ballots"`
}

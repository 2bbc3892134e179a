// Package models defines the core data structures shared by the hemicycle
// pipeline: ballots, vote records, and the deputy/group profiles derived
// from them.
package models

import "strings"

// Position is a participant's recorded stance on a ballot.
type Position string

const (
	PositionFor       Position = "FOR"
	PositionAgainst   Position = "AGAINST"
	PositionAbstain   Position = "ABSTAIN"
	PositionNonVoting Position = "NONVOTING"
)

// Positions lists the canonical positions in tie-break order.
var Positions = []Position{PositionFor, PositionAgainst, PositionAbstain, PositionNonVoting}

// bucketLabels maps lowercased bucket tag names to positions.
var bucketLabels = map[string]Position{
	"pour":        PositionFor,
	"pours":       PositionFor,
	"contre":      PositionAgainst,
	"contres":     PositionAgainst,
	"abstention":  PositionAbstain,
	"abstentions": PositionAbstain,
	"nonvotant":   PositionNonVoting,
	"nonvotants":  PositionNonVoting,
}

// ParsePosition maps a position-bucket tag name (e.g. "pours", "nonVotants")
// to its canonical position. Matching is case-insensitive.
func ParsePosition(label string) (Position, bool) {
	p, ok := bucketLabels[strings.ToLower(strings.TrimSpace(label))]
	return p, ok
}

// Valid reports whether p is one of the four canonical positions.
func (p Position) Valid() bool {
	switch p {
	case PositionFor, PositionAgainst, PositionAbstain, PositionNonVoting:
		return true
	}
	return false
}

// Key returns the lowercase key used in per-position JSON maps.
func (p Position) Key() string {
	switch p {
	case PositionFor:
		return "for"
	case PositionAgainst:
		return "against"
	case PositionAbstain:
		return "abstain"
	case PositionNonVoting:
		return "nonvoting"
	}
	return ""
}

// Result status values of a ballot.
const (
	ResultAdopted  = "adopted"
	ResultRejected = "rejected"
)

// Declared count keys, as published in the official decompte.
const (
	CountFor        = "for"
	CountAgainst    = "against"
	CountAbstention = "abstention"
	CountNonVoting  = "nonvoting"
)

// Placeholder labels used when a value must be displayed but is unknown.
const (
	UnknownName      = "Inconnu"
	UnknownGroupName = "Groupe inconnu"
)

// VoteRecord is one participant's position on one ballot.
type VoteRecord struct {
	PersonID     string   `json:"person_id"`
	Position     Position `json:"position"`
	Group        string   `json:"group,omitempty"`
	Name         string   `json:"name,omitempty"`
	GroupName    string   `json:"group_name,omitempty"`
	GroupAcronym string   `json:"group_acronym,omitempty"`
	Constituency string   `json:"constituency,omitempty"`
}

// BallotRecord is one normalized roll-call vote.
type BallotRecord struct {
	ID             string         `json:"id"`
	Date           string         `json:"date"` // YYYY-MM-DD
	Chamber        string         `json:"chamber"`
	Title          string         `json:"title"`
	Object         string         `json:"object,omitempty"`
	Type           string         `json:"scrutin_type,omitempty"`
	ResultStatus   string         `json:"result_status,omitempty"`
	DeclaredCounts map[string]int `json:"counts,omitempty"`
	SourceURL      string         `json:"source_url,omitempty"`
	Themes         []string       `json:"themes"`
	Votes          []VoteRecord   `json:"votes"`
}

// Month returns the YYYY-MM prefix of the ballot date.
func (b BallotRecord) Month() string {
	if len(b.Date) < 7 {
		return b.Date
	}
	return b.Date[:7]
}

// Tally counts the ballot's vote records per position.
func (b BallotRecord) Tally() PositionCounts {
	var c PositionCounts
	for _, v := range b.Votes {
		c.Add(v.Position)
	}
	return c
}

// PositionCounts holds one integer counter per canonical position.
type PositionCounts struct {
	For       int `json:"for"`
	Against   int `json:"against"`
	Abstain   int `json:"abstain"`
	NonVoting int `json:"nonvoting"`
}

// Add increments the counter for p. Unknown positions are ignored.
func (c *PositionCounts) Add(p Position) {
	switch p {
	case PositionFor:
		c.For++
	case PositionAgainst:
		c.Against++
	case PositionAbstain:
		c.Abstain++
	case PositionNonVoting:
		c.NonVoting++
	}
}

// Get returns the counter for p, or 0 for an unknown position.
func (c PositionCounts) Get(p Position) int {
	switch p {
	case PositionFor:
		return c.For
	case PositionAgainst:
		return c.Against
	case PositionAbstain:
		return c.Abstain
	case PositionNonVoting:
		return c.NonVoting
	}
	return 0
}

// Total returns the sum of all counters.
func (c PositionCounts) Total() int {
	return c.For + c.Against + c.Abstain + c.NonVoting
}

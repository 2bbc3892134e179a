// Package aggregate folds a corpus of ballots into per-deputy and per-group
// statistics.
//
// Both passes are synchronous and keep all accumulation state local to one
// call, so running them twice on the same input yields the same output.
package aggregate

import (
	"math"
	"sort"

	"github.com/seenimoa/hemicycle/pkg/models"
)

// Order selects how ballots are iterated while folding deputy profiles.
// Name and group affiliation follow a last-write-wins policy, so the
// iteration order decides which observation is kept.
type Order string

const (
	// OrderInput folds ballots in the order the caller passed them.
	OrderInput Order = "input"
	// OrderChronological folds a copy sorted by ascending (date, id), so the
	// latest ballot provides the final name and group.
	OrderChronological Order = "chronological"
)

// ParseOrder returns the Order named s. An empty string means OrderInput.
func ParseOrder(s string) (Order, bool) {
	switch Order(s) {
	case "", OrderInput:
		return OrderInput, true
	case OrderChronological:
		return OrderChronological, true
	}
	return "", false
}

type options struct {
	order Order
}

// Option configures Deputies.
type Option func(*options)

// WithOrder sets the ballot iteration order.
func WithOrder(o Order) Option {
	return func(opts *options) {
		opts.order = o
	}
}

// round1 rounds to one decimal place.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// pct returns n as a percentage of total, rounded to one decimal. A zero
// total yields 0.
func pct(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round1(float64(n) / float64(total) * 100)
}

// chronological returns a copy of ballots sorted by ascending (date, id).
// The input slice is left untouched.
func chronological(ballots []models.BallotRecord) []models.BallotRecord {
	out := make([]models.BallotRecord, len(ballots))
	copy(out, ballots)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// majority returns the position with the highest count, ties broken by
// models.Positions order, along with that count.
func majority(c models.PositionCounts) (models.Position, int) {
	var (
		best  models.Position
		count = -1
	)
	for _, p := range models.Positions {
		if n := c.Get(p); n > count {
			best, count = p, n
		}
	}
	return best, count
}

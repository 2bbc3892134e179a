// Package extract recovers per-participant vote records from a ballot
// document tree.
//
// Each participant reference (an acteurRef element carrying the voter id)
// is classified by climbing its ancestor chain: the first ancestor whose
// tag is a position bucket (pours, contres, abstentions, nonVotants...)
// gives the position, and the first ancestor that contains an organeRef
// gives the sponsoring group. The climb is bounded so that malformed or
// pathologically deep documents cost a predictable amount of work.
package extract

import (
	"io"
	"log/slog"

	"github.com/seenimoa/hemicycle/internal/document"
	"github.com/seenimoa/hemicycle/pkg/models"
)

// MaxAncestorDepth is the default bound on the ancestor climb.
const MaxAncestorDepth = 30

// Tag names looked up in ballot documents.
const (
	ParticipantTag = "acteurRef"
	OrganTag       = "organeRef"
)

// Extractor classifies participant references of a ballot document.
type Extractor struct {
	MaxDepth int
}

// New returns an Extractor using MaxAncestorDepth.
func New() *Extractor {
	return &Extractor{MaxDepth: MaxAncestorDepth}
}

// WithMaxDepth returns an Extractor bounded to depth ancestors. A
// non-positive depth falls back to MaxAncestorDepth.
func WithMaxDepth(depth int) *Extractor {
	if depth <= 0 {
		depth = MaxAncestorDepth
	}
	return &Extractor{MaxDepth: depth}
}

// voteKey identifies a vote record for deduplication.
type voteKey struct {
	personID string
	position models.Position
	group    string
}

// Extract returns the deduplicated vote records found under root, in
// first-seen document order. References that cannot be classified are
// dropped.
func (e *Extractor) Extract(root *document.Node) []models.VoteRecord {
	votes := []models.VoteRecord{}
	if root == nil {
		return votes
	}

	depth := e.MaxDepth
	if depth <= 0 {
		depth = MaxAncestorDepth
	}

	// organ text per ancestor; the same ancestors are visited for every
	// participant of a bucket.
	organs := make(map[*document.Node]string)
	organOf := func(n *document.Node) string {
		if g, ok := organs[n]; ok {
			return g
		}
		g := n.FirstText(OrganTag)
		organs[n] = g
		return g
	}

	seen := make(map[voteKey]struct{})
	for _, ref := range root.Find(ParticipantTag) {
		pid := ref.Text()
		if pid == "" {
			continue
		}

		var (
			position models.Position
			group    string
		)
		for _, anc := range ref.Ancestors(depth) {
			if position == "" {
				if p, ok := models.ParsePosition(anc.Name); ok {
					position = p
				}
			}
			if group == "" {
				group = organOf(anc)
			}
			if position != "" && group != "" {
				break
			}
		}

		if position == "" {
			continue
		}

		k := voteKey{personID: pid, position: position, group: group}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		votes = append(votes, models.VoteRecord{
			PersonID: pid,
			Position: position,
			Group:    group,
		})
	}

	return votes
}

// ExtractFromReader parses r and extracts its votes. A document that fails
// to parse yields an empty list.
func (e *Extractor) ExtractFromReader(r io.Reader) []models.VoteRecord {
	root, err := document.Parse(r)
	if err != nil {
		slog.Debug("ballot document skipped", "error", err)
		return []models.VoteRecord{}
	}
	return e.Extract(root)
}

// ExtractVotes runs the default extractor on root.
func ExtractVotes(root *document.Node) []models.VoteRecord {
	return New().Extract(root)
}

// ExtractFromReader runs the default extractor on a serialized document.
func ExtractFromReader(r io.Reader) []models.VoteRecord {
	return New().ExtractFromReader(r)
}

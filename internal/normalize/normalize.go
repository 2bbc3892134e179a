// Package normalize turns parsed ballot documents into BallotRecords.
package normalize

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/hemicycle/internal/document"
	"github.com/seenimoa/hemicycle/internal/extract"
	"github.com/seenimoa/hemicycle/pkg/models"
)

// Defaults applied when a ballot document omits a field.
const (
	DefaultNumero = "UNKNOWN"
	DefaultDate   = "1970-01-01"
	DefaultTitle  = "(sans titre)"
)

// declaredCountTags maps declared count keys to their tag in a decompte.
var declaredCountTags = []struct {
	key, tag string
}{
	{models.CountFor, "pour"},
	{models.CountAgainst, "contre"},
	{models.CountAbstention, "abstention"},
	{models.CountNonVoting, "nonVotant"},
}

// Options identify the assembly a batch of documents comes from.
type Options struct {
	Chamber     string
	Legislature string
}

// Normalizer builds BallotRecords from ballot documents.
type Normalizer struct {
	opts      Options
	extractor *extract.Extractor
}

// New returns a Normalizer. A nil extractor uses the default depth bound.
func New(opts Options, ex *extract.Extractor) *Normalizer {
	if ex == nil {
		ex = extract.New()
	}
	return &Normalizer{opts: opts, extractor: ex}
}

// ParseDocument parses one serialized ballot. A document that fails to
// parse yields an empty list rather than an error.
func (n *Normalizer) ParseDocument(r io.Reader) []models.BallotRecord {
	root, err := document.Parse(r)
	if err != nil {
		slog.Debug("ballot document skipped", "error", err)
		return []models.BallotRecord{}
	}
	return []models.BallotRecord{n.FromTree(root)}
}

// FromTree builds the BallotRecord for a parsed ballot document.
func (n *Normalizer) FromTree(root *document.Node) models.BallotRecord {
	numero := root.FirstText("numero")
	if numero == "" {
		numero = DefaultNumero
	}

	date := DateOnly(root.FirstText("dateScrutin"))
	if date == "" {
		date = DefaultDate
	}

	title := CleanText(root.FirstText("objet"))
	if title == "" {
		title = DefaultTitle
	}

	b := models.BallotRecord{
		ID:           n.BallotID(numero),
		Date:         date,
		Chamber:      n.opts.Chamber,
		Title:        title,
		Type:         firstWithin(root, "typeScrutin", "libelle"),
		ResultStatus: NormalizeResult(firstWithin(root, "syntheseVote", "resultat")),
		Themes:       []string{},
		Votes:        n.extractor.Extract(root),
	}

	for _, c := range declaredCountTags {
		v, ok := digits(firstWithin(root, "decompte", c.tag))
		if !ok {
			continue
		}
		if b.DeclaredCounts == nil {
			b.DeclaredCounts = make(map[string]int)
		}
		b.DeclaredCounts[c.key] = v
	}
	return b
}

// BallotID formats the stable ballot id "{chamber}-{legislature}-{numero}".
func (n *Normalizer) BallotID(numero string) string {
	return fmt.Sprintf("%s-%s-%s", n.opts.Chamber, n.opts.Legislature, numero)
}

// firstWithin returns the trimmed text of the first inner element found
// under an outer element, scanning outer elements in document order.
func firstWithin(root *document.Node, outer, inner string) string {
	for _, o := range root.Find(outer) {
		if in := o.First(inner); in != nil {
			return strings.TrimSpace(in.InnerText())
		}
	}
	return ""
}

// digits parses s when it is a non-empty run of ASCII digits.
func digits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DateOnly keeps the date part of an ISO timestamp.
func DateOnly(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	return s
}

// NormalizeResult maps a free-text outcome to adopted/rejected, or returns
// it lowercased when neither matches.
func NormalizeResult(s string) string {
	low := strings.ToLower(strings.TrimSpace(s))
	switch {
	case low == "":
		return ""
	case strings.Contains(low, "adopt"):
		return models.ResultAdopted
	case strings.Contains(low, "rejet"):
		return models.ResultRejected
	}
	return low
}

// markupRe matches an HTML start or end tag.
var markupRe = regexp.MustCompile(`</?[A-Za-z][^<>]*>`)

// CleanText strips any markup left in a text field and collapses
// whitespace. Text without tags is already unescaped and is kept as is.
func CleanText(s string) string {
	if markupRe.MatchString(s) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// Enrich fills display names from the referential. Voters missing from it
// get models.UnknownName; group labels are set only for votes with a group.
// The input slice is not modified.
func Enrich(ballots []models.BallotRecord, ref *models.Referential) []models.BallotRecord {
	out := make([]models.BallotRecord, len(ballots))
	for i, b := range ballots {
		votes := make([]models.VoteRecord, len(b.Votes))
		for j, v := range b.Votes {
			v.Name = ref.ActorName(v.PersonID)
			if v.Group != "" {
				o, _ := ref.Organ(v.Group)
				v.GroupName = o.Name
				v.GroupAcronym = o.Acronym
			}
			votes[j] = v
		}
		b.Votes = votes
		out[i] = b
	}
	return out
}

// Finalize removes duplicate ids (the last occurrence wins), sorts by
// (date, id) descending and keeps at most limit ballots. A non-positive
// limit keeps everything.
func Finalize(ballots []models.BallotRecord, limit int) []models.BallotRecord {
	byID := make(map[string]int, len(ballots))
	out := make([]models.BallotRecord, 0, len(ballots))
	for _, b := range ballots {
		if i, ok := byID[b.ID]; ok {
			out[i] = b
			continue
		}
		byID[b.ID] = len(out)
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

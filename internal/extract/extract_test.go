package extract

import (
	"reflect"
	"strings"
	"testing"

	"github.com/seenimoa/hemicycle/internal/document"
	"github.com/seenimoa/hemicycle/pkg/models"
)

// ballotXML mirrors the layout of an Assemblée nationale scrutin file.
const ballotXML = `<?xml version="1.0" encoding="UTF-8"?>
<scrutin xmlns="http://schemas.assemblee-nationale.fr/referentiel" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <uid>VTANR5L17V42</uid>
  <numero>42</numero>
  <organeRef>PO838901</organeRef>
  <ventilationVotes>
    <organe>
      <organeRef>PO838901</organeRef>
      <groupes>
        <groupe>
          <organeRef>PO845401</organeRef>
          <vote>
            <decompteNominatif>
              <nonVotants xsi:nil="true"/>
              <pours>
                <votant><acteurRef>PA1</acteurRef><mandatRef>PM1</mandatRef></votant>
                <votant><acteurRef>PA2</acteurRef><mandatRef>PM2</mandatRef></votant>
              </pours>
              <contres>
                <votant><acteurRef>PA3</acteurRef></votant>
              </contres>
              <abstentions/>
            </decompteNominatif>
          </vote>
        </groupe>
        <groupe>
          <organeRef>PO845413</organeRef>
          <vote>
            <decompteNominatif>
              <Abstentions>
                <votant><acteurRef>PA4</acteurRef></votant>
              </Abstentions>
              <nonVotants>
                <votant><acteurRef>PA5</acteurRef></votant>
              </nonVotants>
            </decompteNominatif>
          </vote>
        </groupe>
      </groupes>
    </organe>
  </ventilationVotes>
</scrutin>`

func mustParse(t *testing.T, s string) *document.Node {
	t.Helper()
	root, err := document.ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func TestExtractClassifiesPositionsAndGroups(t *testing.T) {
	votes := ExtractVotes(mustParse(t, ballotXML))

	want := []models.VoteRecord{
		{PersonID: "PA1", Position: models.PositionFor, Group: "PO845401"},
		{PersonID: "PA2", Position: models.PositionFor, Group: "PO845401"},
		{PersonID: "PA3", Position: models.PositionAgainst, Group: "PO845401"},
		{PersonID: "PA4", Position: models.PositionAbstain, Group: "PO845413"},
		{PersonID: "PA5", Position: models.PositionNonVoting, Group: "PO845413"},
	}
	if !reflect.DeepEqual(votes, want) {
		t.Fatalf("votes mismatch:\n got  %+v\n want %+v", votes, want)
	}
}

func TestExtractDeduplicatesNestedReferences(t *testing.T) {
	doc := `<scrutin><groupe><organeRef>G1</organeRef>
		<pours>
			<votant><acteurRef>PA1</acteurRef></votant>
			<votant><acteurRef>PA1</acteurRef></votant>
			<delegation><votant><acteurRef>PA1</acteurRef></votant></delegation>
		</pours>
		<contres><votant><acteurRef>PA1</acteurRef></votant></contres>
	</groupe></scrutin>`

	votes := ExtractVotes(mustParse(t, doc))
	if len(votes) != 2 {
		t.Fatalf("got %d votes, want 2: %+v", len(votes), votes)
	}
	if votes[0].Position != models.PositionFor || votes[1].Position != models.PositionAgainst {
		t.Errorf("unexpected order: %+v", votes)
	}
}

func TestExtractDropsUnclassifiable(t *testing.T) {
	doc := `<scrutin>
		<groupe><organeRef>G1</organeRef>
			<pours><votant><acteurRef>PA1</acteurRef></votant></pours>
			<misc><acteurRef>PA9</acteurRef></misc>
			<pours><votant><acteurRef>  </acteurRef></votant></pours>
		</groupe>
	</scrutin>`

	votes := ExtractVotes(mustParse(t, doc))
	if len(votes) != 1 || votes[0].PersonID != "PA1" {
		t.Fatalf("got %+v, want only PA1", votes)
	}
}

func TestExtractWithoutGroup(t *testing.T) {
	doc := `<scrutin><miseAuPoint><pours><votant><acteurRef>PA1</acteurRef></votant></pours></miseAuPoint></scrutin>`
	votes := ExtractVotes(mustParse(t, doc))
	if len(votes) != 1 {
		t.Fatalf("got %d votes, want 1", len(votes))
	}
	if votes[0].Group != "" {
		t.Errorf("group: got %q, want empty", votes[0].Group)
	}
}

// nestedBallot wraps a participant reference in wrappers elements between
// the reference and its position bucket.
func nestedBallot(wrappers int) string {
	var sb strings.Builder
	sb.WriteString("<scrutin><groupe><organeRef>G1</organeRef><pours>")
	for i := 0; i < wrappers; i++ {
		sb.WriteString("<w>")
	}
	sb.WriteString("<acteurRef>PA1</acteurRef>")
	for i := 0; i < wrappers; i++ {
		sb.WriteString("</w>")
	}
	sb.WriteString("</pours></groupe></scrutin>")
	return sb.String()
}

func TestExtractDepthBound(t *testing.T) {
	tests := []struct {
		name     string
		wrappers int
		want     int
	}{
		{"bucket is parent", 0, 1},
		{"bucket at 30th ancestor", 29, 1},
		{"bucket at 31st ancestor", 30, 0},
		{"far beyond bound", 200, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			votes := ExtractVotes(mustParse(t, nestedBallot(tt.wrappers)))
			if len(votes) != tt.want {
				t.Errorf("got %d votes, want %d", len(votes), tt.want)
			}
		})
	}
}

func TestWithMaxDepth(t *testing.T) {
	root := mustParse(t, nestedBallot(5))
	if got := WithMaxDepth(5).Extract(root); len(got) != 0 {
		t.Errorf("depth 5: got %d votes, want 0", len(got))
	}
	if got := WithMaxDepth(6).Extract(root); len(got) != 1 {
		t.Errorf("depth 6: got %d votes, want 1", len(got))
	}
	if WithMaxDepth(0).MaxDepth != MaxAncestorDepth {
		t.Error("non-positive depth should fall back to the default")
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	first := ExtractFromReader(strings.NewReader(ballotXML))
	second := ExtractFromReader(strings.NewReader(ballotXML))
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated extraction differs")
	}
}

func TestExtractCountsMatchRecords(t *testing.T) {
	b := models.BallotRecord{Votes: ExtractVotes(mustParse(t, ballotXML))}
	if got := b.Tally().Total(); got != len(b.Votes) {
		t.Errorf("tally total %d != record count %d", got, len(b.Votes))
	}
}

func TestExtractFromReaderMalformed(t *testing.T) {
	votes := ExtractFromReader(strings.NewReader(`<scrutin><pours><acteurRef>PA1</acteurRef></pours>`))
	if votes == nil || len(votes) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", votes)
	}
}

func TestExtractNilRoot(t *testing.T) {
	if got := New().Extract(nil); len(got) != 0 {
		t.Errorf("got %d votes for nil root", len(got))
	}
}

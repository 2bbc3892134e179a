package document

import (
	"errors"
	"strings"
	"testing"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<scrutin xmlns="http://schemas.assemblee-nationale.fr/referentiel">
  <numero>42</numero>
  <groupe>
    <organeRef>PO800490</organeRef>
    <vote>
      <decompteNominatif>
        <pours>
          <votant><acteurRef>PA1</acteurRef></votant>
          <votant><acteurRef> PA2 </acteurRef></votant>
        </pours>
      </decompteNominatif>
    </vote>
  </groupe>
  <objet><libelle>Projet de loi <i>finances</i></libelle></objet>
</scrutin>`

func TestParseBuildsTree(t *testing.T) {
	root, err := ParseString(sample)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if root.Name != "scrutin" {
		t.Fatalf("root name: got %q, want scrutin", root.Name)
	}
	if root.Space == "" {
		t.Error("expected namespace to be recorded")
	}

	refs := root.Find("acteurRef")
	if len(refs) != 2 {
		t.Fatalf("acteurRef count: got %d, want 2", len(refs))
	}
	if refs[1].Text() != "PA2" {
		t.Errorf("second ref text: got %q, want PA2", refs[1].Text())
	}
}

func TestAncestorsOrderAndLimit(t *testing.T) {
	root, err := ParseString(sample)
	if err != nil {
		t.Fatal(err)
	}
	ref := root.First("acteurRef")

	all := ref.Ancestors(100)
	want := []string{"votant", "pours", "decompteNominatif", "vote", "groupe", "scrutin"}
	if len(all) != len(want) {
		t.Fatalf("ancestors: got %d, want %d", len(all), len(want))
	}
	for i, n := range all {
		if n.Name != want[i] {
			t.Errorf("ancestor %d: got %q, want %q", i, n.Name, want[i])
		}
	}

	if got := ref.Ancestors(2); len(got) != 2 {
		t.Errorf("limited ancestors: got %d, want 2", len(got))
	}
	if got := ref.Ancestors(0); got != nil {
		t.Errorf("zero limit: got %v, want nil", got)
	}
}

func TestFirstText(t *testing.T) {
	root, err := ParseString(sample)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		tag  string
		want string
	}{
		{"simple leaf", "numero", "42"},
		{"nested markup", "libelle", "Projet de loi finances"},
		{"organ ref", "organeRef", "PO800490"},
		{"missing", "dateScrutin", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := root.FirstText(tt.tag); got != tt.want {
				t.Errorf("FirstText(%q): got %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestAttr(t *testing.T) {
	root, err := ParseString(`<a kind="x"><b/></a>`)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := root.Attr("kind"); !ok || v != "x" {
		t.Errorf("Attr(kind): got %q,%v", v, ok)
	}
	if _, ok := root.Attr("missing"); ok {
		t.Error("expected missing attribute")
	}
}

func TestParseMalformed(t *testing.T) {
	inputs := map[string]string{
		"unclosed":    `<a><b></b>`,
		"mismatched":  `<a><b></a></b>`,
		"empty":       ``,
		"text only":   `just text`,
		"garbage tag": `<a><</a>`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(in))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestNilNodeIsSafe(t *testing.T) {
	var n *Node
	if n.Text() != "" || n.InnerText() != "" || n.FirstText("x") != "" {
		t.Error("nil node should yield empty text")
	}
	if n.Ancestors(5) != nil || n.Find("x") != nil || n.First("x") != nil {
		t.Error("nil node should yield no nodes")
	}
}

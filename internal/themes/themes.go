// Package themes tags ballots with topical themes by keyword matching on
// their titles.
package themes

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	json "github.com/goccy/go-json"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/seenimoa/hemicycle/pkg/models"
)

// Theme is one topical tag and the keywords that trigger it.
type Theme struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
}

// Config is the list of known themes, in display order.
type Config struct {
	Themes []Theme `json:"themes"`
}

// Load reads a theme configuration file. A missing file yields an empty
// configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read themes: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse themes %s: %w", path, err)
	}
	return &cfg, nil
}

// Fold lowercases s and strips diacritics, so that "Écologie" and
// "ecologie" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// matcher holds the folded keywords of each theme.
type matcher struct {
	ids      []string
	keywords [][]string
}

func newMatcher(cfg *Config) *matcher {
	m := &matcher{}
	if cfg == nil {
		return m
	}
	for _, th := range cfg.Themes {
		var kws []string
		for _, k := range th.Keywords {
			if k = strings.TrimSpace(Fold(k)); k != "" {
				kws = append(kws, k)
			}
		}
		m.ids = append(m.ids, th.ID)
		m.keywords = append(m.keywords, kws)
	}
	return m
}

func (m *matcher) match(title string) []string {
	folded := Fold(title)
	out := []string{}
	for i, kws := range m.keywords {
		for _, k := range kws {
			if strings.Contains(folded, k) {
				out = append(out, m.ids[i])
				break
			}
		}
	}
	return out
}

// Assign returns copies of ballots whose Themes list the ids of every theme
// with a keyword occurring in the title, in configuration order.
func Assign(ballots []models.BallotRecord, cfg *Config) []models.BallotRecord {
	m := newMatcher(cfg)
	out := make([]models.BallotRecord, len(ballots))
	for i, b := range ballots {
		b.Themes = m.match(b.Title)
		out[i] = b
	}
	return out
}

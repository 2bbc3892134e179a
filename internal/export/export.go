// Package export writes the generated dataset as static JSON files and reads
// it back.
//
// Layout under the data directory:
//
//	index.json             light list of every ballot plus available months
//	people.json            minimal voter referential folded from votes
//	scrutins/YYYY-MM.json  full ballots (with votes) of one month
//	deputies.json          deputy profiles
//	groups.json            group profiles
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"

	"github.com/seenimoa/hemicycle/pkg/models"
)

// ErrNoData is returned when the data directory holds no exported ballots.
var ErrNoData = errors.New("no exported data")

// File names inside the data directory.
const (
	IndexFile    = "index.json"
	PeopleFile   = "people.json"
	DeputiesFile = "deputies.json"
	GroupsFile   = "groups.json"
	BallotsDir   = "scrutins"
)

// IndexEntry is the light view of a ballot listed in index.json.
type IndexEntry struct {
	ID           string         `json:"id"`
	Chamber      string         `json:"chamber"`
	Date         string         `json:"date"`
	Title        string         `json:"title"`
	Type         string         `json:"scrutin_type,omitempty"`
	ResultStatus string         `json:"result_status,omitempty"`
	Counts       map[string]int `json:"counts,omitempty"`
	Themes       []string       `json:"themes"`
	SourceURL    string         `json:"source_url,omitempty"`
}

// Index is the content of index.json.
type Index struct {
	GeneratedAt string       `json:"generated_at"`
	Months      []string     `json:"months"`
	Ballots     []IndexEntry `json:"scrutins"`
}

type peopleFile struct {
	GeneratedAt string          `json:"generated_at"`
	People      []models.Person `json:"people"`
}

type monthFile struct {
	Month   string                `json:"month"`
	Ballots []models.BallotRecord `json:"scrutins"`
}

type deputiesFile struct {
	GeneratedAt string                 `json:"generated_at"`
	Deputies    []models.DeputyProfile `json:"deputies"`
}

type groupsFile struct {
	GeneratedAt string                `json:"generated_at"`
	Groups      []models.GroupProfile `json:"groups"`
}

// Dataset is everything the exporter writes.
type Dataset struct {
	GeneratedAt time.Time
	Ballots     []models.BallotRecord
	Deputies    []models.DeputyProfile
	Groups      []models.GroupProfile
}

// Exporter reads and writes a data directory.
type Exporter struct {
	DataDir string
}

// New returns an Exporter rooted at dataDir.
func New(dataDir string) *Exporter {
	return &Exporter{DataDir: dataDir}
}

// WriteAll writes every file of ds. The monthly ballot directory is
// emptied first so months that no longer have ballots disappear.
func (e *Exporter) WriteAll(ds *Dataset) error {
	generatedAt := ds.GeneratedAt.UTC().Format(time.RFC3339)

	if err := e.writeJSON(IndexFile, BuildIndex(generatedAt, ds.Ballots)); err != nil {
		return err
	}
	if err := e.writeJSON(PeopleFile, peopleFile{GeneratedAt: generatedAt, People: People(ds.Ballots)}); err != nil {
		return err
	}

	dir := filepath.Join(e.DataDir, BallotsDir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean %s: %w", dir, err)
	}
	for month, items := range byMonth(ds.Ballots) {
		if err := e.writeJSON(filepath.Join(BallotsDir, month+".json"), monthFile{Month: month, Ballots: items}); err != nil {
			return err
		}
	}

	if ds.Deputies != nil {
		if err := e.writeJSON(DeputiesFile, deputiesFile{GeneratedAt: generatedAt, Deputies: ds.Deputies}); err != nil {
			return err
		}
	}
	if ds.Groups != nil {
		if err := e.writeJSON(GroupsFile, groupsFile{GeneratedAt: generatedAt, Groups: ds.Groups}); err != nil {
			return err
		}
	}
	return nil
}

// BuildIndex returns the light index of ballots, most recent first.
func BuildIndex(generatedAt string, ballots []models.BallotRecord) Index {
	idx := Index{
		GeneratedAt: generatedAt,
		Months:      []string{},
		Ballots:     make([]IndexEntry, 0, len(ballots)),
	}
	months := make(map[string]struct{})
	for _, b := range ballots {
		themes := b.Themes
		if themes == nil {
			themes = []string{}
		}
		idx.Ballots = append(idx.Ballots, IndexEntry{
			ID:           b.ID,
			Chamber:      b.Chamber,
			Date:         b.Date,
			Title:        b.Title,
			Type:         b.Type,
			ResultStatus: b.ResultStatus,
			Counts:       b.DeclaredCounts,
			Themes:       themes,
			SourceURL:    b.SourceURL,
		})
		months[b.Month()] = struct{}{}
	}
	for m := range months {
		idx.Months = append(idx.Months, m)
	}
	sort.Strings(idx.Months)
	sort.SliceStable(idx.Ballots, func(i, j int) bool {
		return newer(idx.Ballots[i].Date, idx.Ballots[i].ID, idx.Ballots[j].Date, idx.Ballots[j].ID)
	})
	return idx
}

// People folds vote records into one entry per voter, sorted by
// (name, person id). Non-empty values seen later overwrite earlier ones.
func People(ballots []models.BallotRecord) []models.Person {
	byID := make(map[string]*models.Person)
	for _, b := range ballots {
		for _, v := range b.Votes {
			p, ok := byID[v.PersonID]
			if !ok {
				p = &models.Person{PersonID: v.PersonID, Name: v.Name, Chamber: b.Chamber}
				byID[v.PersonID] = p
			}
			if v.Group != "" {
				p.Group = v.Group
			}
			if v.Constituency != "" {
				p.Constituency = v.Constituency
			}
			if v.Name != "" {
				p.Name = v.Name
			}
		}
	}

	out := make([]models.Person, 0, len(byID))
	for _, p := range byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out
}

func byMonth(ballots []models.BallotRecord) map[string][]models.BallotRecord {
	out := make(map[string][]models.BallotRecord)
	for _, b := range ballots {
		out[b.Month()] = append(out[b.Month()], b)
	}
	for _, items := range out {
		sort.SliceStable(items, func(i, j int) bool {
			return newer(items[i].Date, items[i].ID, items[j].Date, items[j].ID)
		})
	}
	return out
}

// newer orders by (date, id) descending.
func newer(dateA, idA, dateB, idB string) bool {
	if dateA != dateB {
		return dateA > dateB
	}
	return idA > idB
}

// writeJSON writes v with two-space indentation to name, relative to the
// data directory, through a temporary file.
func (e *Exporter) writeJSON(name string, v any) error {
	path := filepath.Join(e.DataDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", name, err)
	}

	slog.Debug("exported", "file", name, "size", humanize.Bytes(uint64(len(data))))
	return nil
}

func (e *Exporter) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(e.DataDir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// LoadBallots reads every monthly ballot file back, most recent first.
func (e *Exporter) LoadBallots() ([]models.BallotRecord, error) {
	matches, err := filepath.Glob(filepath.Join(e.DataDir, BallotsDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list ballot files: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoData, e.DataDir)
	}

	var out []models.BallotRecord
	for _, path := range matches {
		var mf monthFile
		name, _ := filepath.Rel(e.DataDir, path)
		if err := e.readJSON(name, &mf); err != nil {
			return nil, err
		}
		out = append(out, mf.Ballots...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].Date, out[i].ID, out[j].Date, out[j].ID)
	})
	return out, nil
}

// Load reads the whole dataset back. Missing profile files leave the
// corresponding lists empty.
func (e *Exporter) Load() (*Dataset, error) {
	ballots, err := e.LoadBallots()
	if err != nil {
		return nil, err
	}
	ds := &Dataset{Ballots: ballots}

	var idx Index
	if err := e.readJSON(IndexFile, &idx); err == nil {
		if t, perr := time.Parse(time.RFC3339, idx.GeneratedAt); perr == nil {
			ds.GeneratedAt = t
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var df deputiesFile
	if err := e.readJSON(DeputiesFile, &df); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	ds.Deputies = df.Deputies

	var gf groupsFile
	if err := e.readJSON(GroupsFile, &gf); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	ds.Groups = gf.Groups
	return ds, nil
}

// Months lists the months that have a ballot file, ascending.
func (e *Exporter) Months() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(e.DataDir, BallotsDir, "*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	sort.Strings(out)
	return out, nil
}

package datasource

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/seenimoa/hemicycle/pkg/models"
)

// compositeMaxFiles is the number of JSON entries below which a referential
// archive is read as a single composite document.
const compositeMaxFiles = 5

// textValue decodes either a plain string or an object carrying the text
// under "#text". Anything else decodes to "".
type textValue string

func (t *textValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = textValue(strings.TrimSpace(s))
	case '{':
		var obj struct {
			Text string `json:"#text"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*t = textValue(strings.TrimSpace(obj.Text))
	default:
		*t = ""
	}
	return nil
}

// oneOrMany decodes a JSON value that is either a single object or a list.
// Non-object list items are skipped.
type oneOrMany[T any] []T

func (m *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '{':
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*m = oneOrMany[T]{v}
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(oneOrMany[T], 0, len(raw))
		for _, r := range raw {
			r = bytes.TrimSpace(r)
			if len(r) == 0 || r[0] != '{' {
				continue
			}
			var v T
			if err := json.Unmarshal(r, &v); err != nil {
				return err
			}
			out = append(out, v)
		}
		*m = out
	}
	return nil
}

type actorJSON struct {
	UID       textValue `json:"uid"`
	EtatCivil struct {
		Ident struct {
			Prenom textValue `json:"prenom"`
			Nom    textValue `json:"nom"`
		} `json:"ident"`
	} `json:"etatCivil"`
}

func (a actorJSON) actor() models.Actor {
	name := strings.TrimSpace(string(a.EtatCivil.Ident.Prenom) + " " + string(a.EtatCivil.Ident.Nom))
	if name == "" {
		name = models.UnknownName
	}
	return models.Actor{ID: string(a.UID), Name: name}
}

type organJSON struct {
	UID           textValue `json:"uid"`
	Libelle       textValue `json:"libelle"`
	LibelleAbrege textValue `json:"libelleAbrege"`
	LibelleAbrev  textValue `json:"libelleAbrev"`
}

func (o organJSON) organ() models.Organ {
	name := string(o.Libelle)
	if name == "" {
		name = models.UnknownGroupName
	}
	acronym := string(o.LibelleAbrege)
	if acronym == "" {
		acronym = string(o.LibelleAbrev)
	}
	return models.Organ{ID: string(o.UID), Name: name, Acronym: acronym}
}

type actorList struct {
	Acteur oneOrMany[actorJSON] `json:"acteur"`
}

type organList struct {
	Organe oneOrMany[organJSON] `json:"organe"`
}

type compositeBody struct {
	Acteurs actorList `json:"acteurs"`
	Organes organList `json:"organes"`
}

// compositeDoc accepts the body either at the top level or under "export".
type compositeDoc struct {
	Export  *compositeBody `json:"export"`
	Acteurs actorList      `json:"acteurs"`
	Organes organList      `json:"organes"`
}

// ReadReferential loads actors and organs from a referential archive. Two
// layouts are understood: a single composite document (optionally wrapped
// in "export"), and one file per entity under json/acteur/ and json/organe/.
func ReadReferential(zr *zip.Reader) (*models.Referential, error) {
	var jsonFiles []*zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".json") {
			jsonFiles = append(jsonFiles, f)
		}
	}

	if len(jsonFiles) > 0 && len(jsonFiles) <= compositeMaxFiles {
		return readComposite(jsonFiles[0])
	}
	return readPerEntity(jsonFiles)
}

func readComposite(f *zip.File) (*models.Referential, error) {
	var doc compositeDoc
	if err := decodeZipJSON(f, &doc); err != nil {
		return nil, err
	}
	body := compositeBody{Acteurs: doc.Acteurs, Organes: doc.Organes}
	if doc.Export != nil {
		body = *doc.Export
	}

	ref := models.NewReferential()
	for _, a := range body.Acteurs.Acteur {
		if a.UID == "" {
			continue
		}
		ref.Actors[string(a.UID)] = a.actor()
	}
	for _, o := range body.Organes.Organe {
		if o.UID == "" {
			continue
		}
		ref.Organs[string(o.UID)] = o.organ()
	}
	return ref, nil
}

func readPerEntity(files []*zip.File) (*models.Referential, error) {
	actorFiles := filterNames(files, func(n string) bool { return strings.HasPrefix(n, "json/acteur/") })
	if len(actorFiles) == 0 {
		actorFiles = filterNames(files, func(n string) bool { return strings.Contains(n, "/acteur/") })
	}
	organFiles := filterNames(files, func(n string) bool { return strings.HasPrefix(n, "json/organe/") })
	if len(organFiles) == 0 {
		organFiles = filterNames(files, func(n string) bool { return strings.Contains(n, "/organe/") })
	}

	ref := models.NewReferential()
	for _, f := range actorFiles {
		var doc struct {
			Acteur *actorJSON `json:"acteur"`
		}
		if err := decodeZipJSON(f, &doc); err != nil {
			return nil, err
		}
		if doc.Acteur == nil || doc.Acteur.UID == "" {
			continue
		}
		ref.Actors[string(doc.Acteur.UID)] = doc.Acteur.actor()
	}
	for _, f := range organFiles {
		var doc struct {
			Organe *organJSON `json:"organe"`
		}
		if err := decodeZipJSON(f, &doc); err != nil {
			return nil, err
		}
		if doc.Organe == nil || doc.Organe.UID == "" {
			continue
		}
		ref.Organs[string(doc.Organe.UID)] = doc.Organe.organ()
	}
	return ref, nil
}

// filterNames keeps files whose lowercased name matches, sorted by name.
func filterNames(files []*zip.File, match func(string) bool) []*zip.File {
	var out []*zip.File
	for _, f := range files {
		if match(strings.ToLower(f.Name)) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func decodeZipJSON(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.Name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return nil
}

// Package store persists generation runs in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/seenimoa/hemicycle/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Database types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Store wraps a database handle.
type Store struct {
	db  *sql.DB
	typ string
}

// Run describes one saved generation.
type Run struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Ballots     int       `json:"ballot_count"`
	Deputies    int       `json:"deputy_count"`
	Groups      int       `json:"group_count"`
}

// Open connects to the database of type typ ("sqlite" or "postgres") and
// verifies the connection.
func Open(ctx context.Context, typ, url string) (*Store, error) {
	switch typ {
	case TypeSQLite, TypePostgres:
	default:
		return nil, fmt.Errorf("unsupported database type %q", typ)
	}

	db, err := sql.Open(typ, url)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if typ == TypeSQLite {
		// every connection to an in-memory database is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return &Store{db: db, typ: typ}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $1, $2... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.typ != TypePostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// SaveRun replaces the stored ballots and profiles with a new run and
// returns the run id.
func (s *Store) SaveRun(ctx context.Context, generatedAt time.Time, ballots []models.BallotRecord, deputies []models.DeputyProfile, groups []models.GroupProfile) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"vote", "ballot", "deputy", "grp"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return "", fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO run (id, generated_at, ballot_count, deputy_count, group_count) VALUES (?, ?, ?, ?, ?)`),
		runID, generatedAt.UTC().Format(time.RFC3339Nano), len(ballots), len(deputies), len(groups),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := s.insertBallots(ctx, tx, runID, ballots); err != nil {
		return "", err
	}
	if err := s.insertDeputies(ctx, tx, deputies); err != nil {
		return "", err
	}
	if err := s.insertGroups(ctx, tx, groups); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "run saved", "run_id", runID, "ballots", len(ballots), "deputies", len(deputies), "groups", len(groups))
	return runID, nil
}

func (s *Store) insertBallots(ctx context.Context, tx *sql.Tx, runID string, ballots []models.BallotRecord) error {
	ballotStmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO ballot (id, run_id, date, chamber, title, payload) VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare ballot insert: %w", err)
	}
	defer ballotStmt.Close()

	voteStmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO vote (ballot_id, seq, person_id, position, grp, name, group_name, group_acronym, constituency)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare vote insert: %w", err)
	}
	defer voteStmt.Close()

	for _, b := range ballots {
		head := b
		head.Votes = nil
		payload, err := json.Marshal(head)
		if err != nil {
			return fmt.Errorf("encode ballot %s: %w", b.ID, err)
		}
		if _, err := ballotStmt.ExecContext(ctx, b.ID, runID, b.Date, b.Chamber, b.Title, string(payload)); err != nil {
			return fmt.Errorf("insert ballot %s: %w", b.ID, err)
		}
		seq := 0
		for _, v := range b.Votes {
			if !v.Position.Valid() {
				slog.WarnContext(ctx, "vote skipped", "ballot", b.ID, "person", v.PersonID, "position", v.Position)
				continue
			}
			if _, err := voteStmt.ExecContext(ctx, b.ID, seq, v.PersonID, string(v.Position),
				v.Group, v.Name, v.GroupName, v.GroupAcronym, v.Constituency); err != nil {
				return fmt.Errorf("insert vote %s/%s: %w", b.ID, v.PersonID, err)
			}
			seq++
		}
	}
	return nil
}

func (s *Store) insertDeputies(ctx context.Context, tx *sql.Tx, deputies []models.DeputyProfile) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO deputy (person_id, name, grp, payload) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare deputy insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range deputies {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode deputy %s: %w", d.PersonID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.PersonID, d.Name, d.Group, string(payload)); err != nil {
			return fmt.Errorf("insert deputy %s: %w", d.PersonID, err)
		}
	}
	return nil
}

func (s *Store) insertGroups(ctx context.Context, tx *sql.Tx, groups []models.GroupProfile) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO grp (group_id, name, member_count, payload) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare group insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range groups {
		payload, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("encode group %s: %w", g.GroupID, err)
		}
		if _, err := stmt.ExecContext(ctx, g.GroupID, g.Name, g.MemberCount, string(payload)); err != nil {
			return fmt.Errorf("insert group %s: %w", g.GroupID, err)
		}
	}
	return nil
}

// LatestRun returns the most recent saved run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var (
		r  Run
		at string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, generated_at, ballot_count, deputy_count, group_count FROM run ORDER BY generated_at DESC, id DESC LIMIT 1`,
	).Scan(&r.ID, &at, &r.Ballots, &r.Deputies, &r.Groups)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	if r.GeneratedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return nil, fmt.Errorf("parse run time %q: %w", at, err)
	}
	return &r, nil
}

// ListBallots returns ballots without their votes, most recent first. A
// non-positive limit returns every ballot and ignores offset.
func (s *Store) ListBallots(ctx context.Context, limit, offset int) ([]models.BallotRecord, error) {
	query := `SELECT payload FROM ballot ORDER BY date DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query ballots: %w", err)
	}
	return scanPayloads[models.BallotRecord](rows)
}

// GetBallot returns one ballot with its votes.
func (s *Store) GetBallot(ctx context.Context, id string) (*models.BallotRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM ballot WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ballot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query ballot %s: %w", id, err)
	}

	var b models.BallotRecord
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, fmt.Errorf("decode ballot %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT person_id, position, grp, name, group_name, group_acronym, constituency
		 FROM vote WHERE ballot_id = ? ORDER BY seq`), id)
	if err != nil {
		return nil, fmt.Errorf("query votes %s: %w", id, err)
	}
	defer rows.Close()

	b.Votes = []models.VoteRecord{}
	for rows.Next() {
		var (
			v   models.VoteRecord
			pos string
		)
		if err := rows.Scan(&v.PersonID, &pos, &v.Group, &v.Name, &v.GroupName, &v.GroupAcronym, &v.Constituency); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.Position = models.Position(pos)
		b.Votes = append(b.Votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return &b, nil
}

// ListDeputies returns deputy profiles sorted by (name, person id). A
// non-empty group restricts the list to that group.
func (s *Store) ListDeputies(ctx context.Context, group string) ([]models.DeputyProfile, error) {
	query := `SELECT payload FROM deputy`
	var args []any
	if group != "" {
		query += ` WHERE grp = ?`
		args = append(args, group)
	}
	query += ` ORDER BY name, person_id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query deputies: %w", err)
	}
	return scanPayloads[models.DeputyProfile](rows)
}

// GetDeputy returns one deputy profile.
func (s *Store) GetDeputy(ctx context.Context, personID string) (*models.DeputyProfile, error) {
	var d models.DeputyProfile
	if err := s.getPayload(ctx, `SELECT payload FROM deputy WHERE person_id = ?`, personID, &d); err != nil {
		return nil, fmt.Errorf("deputy %s: %w", personID, err)
	}
	return &d, nil
}

// ListGroups returns group profiles by member count descending, then name.
func (s *Store) ListGroups(ctx context.Context) ([]models.GroupProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM grp ORDER BY member_count DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	return scanPayloads[models.GroupProfile](rows)
}

// GetGroup returns one group profile.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.GroupProfile, error) {
	var g models.GroupProfile
	if err := s.getPayload(ctx, `SELECT payload FROM grp WHERE group_id = ?`, groupID, &g); err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}
	return &g, nil
}

func (s *Store) getPayload(ctx context.Context, query, id string, v any) error {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), v)
}

// scanPayloads decodes the single JSON column of every row and closes rows.
func scanPayloads[T any](rows *sql.Rows) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var v T
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

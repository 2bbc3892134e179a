package store

import (
	"context"
	"fmt"
)

// CreateSchema creates all tables. Safe to call multiple times.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// schema is written in the subset of SQL shared by SQLite and PostgreSQL.
var schema = []string{
	// Generation runs
	`CREATE TABLE IF NOT EXISTS run (
    id TEXT PRIMARY KEY,
    generated_at TEXT NOT NULL,
    ballot_count INTEGER NOT NULL,
    deputy_count INTEGER NOT NULL,
    group_count INTEGER NOT NULL
)`,

	// Ballots of the latest run; payload holds the record without votes
	`CREATE TABLE IF NOT EXISTS ballot (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES run(id),
    date TEXT NOT NULL,
    chamber TEXT NOT NULL,
    title TEXT NOT NULL,
    payload TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_ballot_date ON ballot(date)`,

	// Vote records, seq keeps extraction order within a ballot
	`CREATE TABLE IF NOT EXISTS vote (
    ballot_id TEXT NOT NULL REFERENCES ballot(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    person_id TEXT NOT NULL,
    position TEXT NOT NULL CHECK (position IN ('FOR', 'AGAINST', 'ABSTAIN', 'NONVOTING')),
    grp TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    group_name TEXT NOT NULL DEFAULT '',
    group_acronym TEXT NOT NULL DEFAULT '',
    constituency TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (ballot_id, seq)
)`,
	`CREATE INDEX IF NOT EXISTS idx_vote_person_id ON vote(person_id)`,

	// Deputy profiles
	`CREATE TABLE IF NOT EXISTS deputy (
    person_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    grp TEXT NOT NULL DEFAULT '',
    payload TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_deputy_grp ON deputy(grp)`,

	// Group profiles
	`CREATE TABLE IF NOT EXISTS grp (
    group_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    member_count INTEGER NOT NULL,
    payload TEXT NOT NULL
)`,
}

package datasource

import (
	"context"

	"github.com/seenimoa/hemicycle/internal/normalize"
	"github.com/seenimoa/hemicycle/pkg/models"
)

// Static serves a fixed set of ballots. It backs offline runs and tests.
type Static struct {
	ChamberCode string
	Ballots     []models.BallotRecord
	Referential *models.Referential
}

// Name returns the source name.
func (s *Static) Name() string { return "static" }

// Chamber returns the configured chamber code.
func (s *Static) Chamber() string { return s.ChamberCode }

// FetchBallots returns the configured ballots, enriched when a referential
// is set, most recent first.
func (s *Static) FetchBallots(ctx context.Context, limit int) ([]models.BallotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ballots := s.Ballots
	if s.Referential != nil {
		ballots = normalize.Enrich(ballots, s.Referential)
	}
	return normalize.Finalize(ballots, limit), nil
}

// FetchReferential returns the configured referential, or ErrNotSupported.
func (s *Static) FetchReferential(ctx context.Context) (*models.Referential, error) {
	if s.Referential == nil {
		return nil, ErrNotSupported
	}
	return s.Referential, nil
}

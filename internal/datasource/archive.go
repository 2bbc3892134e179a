package datasource

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/hemicycle/internal/normalize"
	"github.com/seenimoa/hemicycle/pkg/models"
)

// progressEvery controls how often archive parsing progress is logged.
const progressEvery = 500

// ReadBallots parses every .xml entry of a ballot archive with n. Entries
// are parsed by up to concurrency goroutines; each result is stored at the
// entry's index so the output follows archive order. An entry that cannot
// be opened or parsed contributes nothing.
func ReadBallots(ctx context.Context, zr *zip.Reader, n *normalize.Normalizer, concurrency int) ([]models.BallotRecord, error) {
	var entries []*zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".xml") {
			entries = append(entries, f)
		}
	}

	results := make([][]models.BallotRecord, len(entries))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, f := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = parseEntry(gctx, f, n)
			if c := done.Add(1); c%progressEvery == 0 {
				slog.InfoContext(gctx, "parsing ballots", "done", c, "total", len(entries))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read ballot archive: %w", err)
	}

	var out []models.BallotRecord
	for _, r := range results {
		out = append(out, r...)
	}
	slog.InfoContext(ctx, "ballots parsed", "entries", len(entries), "ballots", len(out))
	return out, nil
}

func parseEntry(ctx context.Context, f *zip.File, n *normalize.Normalizer) []models.BallotRecord {
	rc, err := f.Open()
	if err != nil {
		slog.WarnContext(ctx, "skipping archive entry", "entry", f.Name, "error", err)
		return nil
	}
	defer rc.Close()
	return n.ParseDocument(rc)
}

// openZip opens a zip file from disk.
func openZip(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return zr, nil
}

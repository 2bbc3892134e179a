package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/seenimoa/hemicycle/internal/extract"
	"github.com/seenimoa/hemicycle/internal/normalize"
	"github.com/seenimoa/hemicycle/pkg/models"
)

// Open data endpoints of the Assemblée nationale for the 17th legislature.
const (
	DefaultBallotsURL = "http://data.assemblee-nationale.fr/static/openData/repository/17/loi/scrutins/Scrutins.xml.zip"
	DefaultActorsURL  = "https://data.assemblee-nationale.fr/static/openData/repository/17/amo/deputes_actifs_mandats_actifs_organes/AMO10_deputes_actifs_mandats_actifs_organes.json.zip"
)

// Archive file names inside the cache directory.
const (
	ballotsArchive = "Scrutins.xml.zip"
	actorsArchive  = "Acteurs.json.zip"
)

// ANConfig configures the Assemblée nationale source.
type ANConfig struct {
	Chamber     string
	Legislature string
	BallotsURL  string
	ActorsURL   string
	CacheDir    string
	Timeout     time.Duration
	Concurrency int
	MaxRetries  int
	MaxDepth    int
}

// AssembleeNationale reads ballots from the Assemblée nationale open data
// archives.
type AssembleeNationale struct {
	cfg        ANConfig
	downloader *Downloader
	normalizer *normalize.Normalizer
	refCache   *Cache[*models.Referential]
}

// NewAssembleeNationale returns a source with defaults filled in for any
// zero field of cfg.
func NewAssembleeNationale(cfg ANConfig) *AssembleeNationale {
	if cfg.Chamber == "" {
		cfg.Chamber = "AN"
	}
	if cfg.Legislature == "" {
		cfg.Legislature = "17"
	}
	if cfg.BallotsURL == "" {
		cfg.BallotsURL = DefaultBallotsURL
	}
	if cfg.ActorsURL == "" {
		cfg.ActorsURL = DefaultActorsURL
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(".cache", "an")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRetry.MaxAttempts
	}

	return &AssembleeNationale{
		cfg: cfg,
		downloader: &Downloader{
			Client:      newHTTPClient(cfg.Timeout),
			Limiter:     NewRateLimiter(2, time.Second),
			ReadTimeout: cfg.Timeout,
			Retry: RetryConfig{
				MaxAttempts: cfg.MaxRetries,
				BaseDelay:   DefaultRetry.BaseDelay,
				MaxDelay:    DefaultRetry.MaxDelay,
			},
		},
		normalizer: normalize.New(
			normalize.Options{Chamber: cfg.Chamber, Legislature: cfg.Legislature},
			extract.WithMaxDepth(cfg.MaxDepth),
		),
		refCache: NewCache[*models.Referential](time.Hour),
	}
}

// Name returns the source name.
func (an *AssembleeNationale) Name() string { return "Assemblée nationale" }

// Chamber returns the chamber code.
func (an *AssembleeNationale) Chamber() string { return an.cfg.Chamber }

// FetchReferential downloads (once) and reads the actors/organs archive.
func (an *AssembleeNationale) FetchReferential(ctx context.Context) (*models.Referential, error) {
	if ref, ok := an.refCache.Get(an.cfg.ActorsURL); ok {
		return ref, nil
	}

	path := filepath.Join(an.cfg.CacheDir, actorsArchive)
	if err := an.downloader.Fetch(ctx, an.cfg.ActorsURL, path); err != nil {
		return nil, fmt.Errorf("fetch referential: %w", err)
	}

	zr, err := openZip(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	ref, err := ReadReferential(&zr.Reader)
	if err != nil {
		return nil, fmt.Errorf("read referential: %w", err)
	}
	slog.InfoContext(ctx, "referential loaded", "actors", len(ref.Actors), "organs", len(ref.Organs))

	an.refCache.Set(an.cfg.ActorsURL, ref)
	return ref, nil
}

// FetchBallots downloads (once) the ballot archive, parses every document,
// enriches votes with display names and returns the most recent ballots.
func (an *AssembleeNationale) FetchBallots(ctx context.Context, limit int) ([]models.BallotRecord, error) {
	ref, err := an.FetchReferential(ctx)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(an.cfg.CacheDir, ballotsArchive)
	if err := an.downloader.Fetch(ctx, an.cfg.BallotsURL, path); err != nil {
		return nil, fmt.Errorf("fetch ballots: %w", err)
	}

	zr, err := openZip(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	ballots, err := ReadBallots(ctx, &zr.Reader, an.normalizer, an.cfg.Concurrency)
	if err != nil {
		return nil, err
	}

	ballots = normalize.Enrich(ballots, ref)
	return normalize.Finalize(ballots, limit), nil
}

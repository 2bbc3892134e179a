package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// RetryConfig bounds the retries of a download.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetry is used when a Downloader has no retry configuration.
var DefaultRetry = RetryConfig{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

// Downloader fetches remote archives into a local cache directory.
type Downloader struct {
	Client  *http.Client
	Limiter *RateLimiter
	Retry   RetryConfig
	// ReadTimeout aborts a transfer that receives no data for this long.
	// Zero disables it.
	ReadTimeout time.Duration
}

// Fetch makes sure dest exists, downloading url into it when it does not.
// The body is streamed to a temporary file in the same directory and
// renamed into place, so an interrupted transfer never leaves a truncated
// archive behind.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		slog.DebugContext(ctx, "using cached archive", "path", dest, "size", humanize.Bytes(uint64(fi.Size())))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	slog.InfoContext(ctx, "downloading archive", "url", url, "dest", dest)
	start := time.Now()

	var written int64
	err := retry(ctx, d.retryConfig(), func() error {
		var err error
		written, err = d.fetchOnce(ctx, url, dest)
		return err
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}

	slog.InfoContext(ctx, "archive downloaded",
		"dest", dest,
		"size", humanize.Bytes(uint64(written)),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) (int64, error) {
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	body, _, err := doGet(reqCtx, client, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var src io.Reader = body
	if d.ReadTimeout > 0 {
		sr := newStallReader(body, d.ReadTimeout, cancel)
		defer sr.stop()
		src = sr
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	return n, nil
}

// stallReader cancels its transfer when no data arrives for timeout. The
// timer restarts on every successful read.
type stallReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	stalled atomic.Bool
}

func newStallReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *stallReader {
	s := &stallReader{r: r, timeout: timeout}
	s.timer = time.AfterFunc(timeout, func() {
		s.stalled.Store(true)
		cancel()
	})
	return s
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 && !s.stalled.Load() {
		s.timer.Reset(s.timeout)
	}
	if err != nil && err != io.EOF && s.stalled.Load() {
		return n, fmt.Errorf("%w: no data for %s", ErrStalled, s.timeout)
	}
	return n, err
}

func (s *stallReader) stop() {
	s.timer.Stop()
}

func (d *Downloader) retryConfig() RetryConfig {
	if d.Retry.MaxAttempts <= 0 {
		return DefaultRetry
	}
	return d.Retry
}

// retry runs fn until it succeeds, fails with a permanent error, or the
// attempts are exhausted. The delay doubles after each failure and is
// capped at cfg.MaxDelay.
func retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * cfg.BaseDelay
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			slog.WarnContext(ctx, "retrying download",
				"attempt", attempt+1,
				"total_attempts", cfg.MaxAttempts,
				"retry_delay_ms", delay.Milliseconds(),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// shouldRetry reports whether err is transient: server errors, rate
// limiting and network failures.
func shouldRetry(err error) bool {
	if errors.Is(err, ErrStalled) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *ErrHTTP
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

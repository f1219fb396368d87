package erddap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/reefwatch/griddap-etl/internal/domain"
	"github.com/reefwatch/griddap-etl/internal/observability"
)

const (
	// DefaultMinBytes is the size floor below which a cached file is treated
	// as an ERDDAP error page or a truncated download.
	DefaultMinBytes = 1024

	maxDownloadAttempts = 3
	backoffBase         = 2 * time.Second

	userAgent = "griddap-etl/1.0"
)

// NetCDF container signatures: classic starts with "CDF", NetCDF4/HDF5 with
// the 4-byte HDF magic.
var (
	magicClassic = []byte("CDF")
	magicHDF5    = []byte{0x89, 'H', 'D', 'F'}
)

// ValidateAsset checks that a local file looks like a real NetCDF grid:
// it exists, meets the size floor, and starts with a known signature. A nil
// return means the asset is usable; otherwise the returned AssetError names
// the failing check. This keeps cached ERDDAP error bodies (ASCII) and
// partial downloads from ever reaching the decoder.
func ValidateAsset(path string, minBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return &domain.AssetError{Path: path, Reason: "missing"}
	}
	if info.Size() < minBytes {
		return &domain.AssetError{Path: path, Reason: fmt.Sprintf("too small: %dB < %dB", info.Size(), minBytes)}
	}

	f, err := os.Open(path)
	if err != nil {
		return &domain.AssetError{Path: path, Reason: fmt.Sprintf("unreadable: %v", err)}
	}
	defer f.Close()

	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		return &domain.AssetError{Path: path, Reason: "header truncated"}
	}
	if bytes.HasPrefix(head, magicClassic) || bytes.Equal(head, magicHDF5) {
		return nil
	}
	return &domain.AssetError{Path: path, Reason: fmt.Sprintf("bad header %q", head)}
}

// FetcherConfig tunes the download/cache behaviour.
type FetcherConfig struct {
	CacheDir string
	MinBytes int64 // 0 means DefaultMinBytes
	Force    bool  // re-download even when a valid cached asset exists
	Timeout  time.Duration
	Clock    clockwork.Clock // nil means real clock
}

// Fetcher downloads grid assets into a local cache, validating and atomically
// replacing files. It implements the pipeline's fetch stage.
type Fetcher struct {
	cfg     FetcherConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFetcher creates a Fetcher. The breaker shields the upstream from retry
// storms across the pieces of a run; its trip threshold sits above one run's
// whole retry budget so plain retries are never short-circuited.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = DefaultMinBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "erddap",
		Interval: time.Minute,
		Timeout:  2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 10
		},
	})
	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: cb,
		clock:   clk,
		logger:  logger,
		metrics: metrics,
	}
}

// Ensure guarantees a valid grid asset for the given request URL at
// filepath.Join(cfg.CacheDir, name) and returns that path.
//
// A cached file that passes validation is reused unless Force is set.
// Otherwise the asset is downloaded to a ".part" sibling, validated, and
// renamed into place, so a crash mid-download cannot leave a corrupt file
// under the final name. Failures (network, non-200, post-download
// validation) are retried up to 3 attempts with a 2s×attempt backoff between
// them; exhaustion surfaces a DownloadError.
func (f *Fetcher) Ensure(ctx context.Context, rawURL, name string) (string, error) {
	if err := os.MkdirAll(f.cfg.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	path := filepath.Join(f.cfg.CacheDir, name)
	safeURL := QuoteURL(rawURL)

	if err := ValidateAsset(path, f.cfg.MinBytes); err == nil && !f.cfg.Force {
		f.logger.Debug("cache hit", "path", path)
		f.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return path, nil
	} else if err != nil {
		f.logger.Info("cache miss", "path", path, "reason", err)
		f.metrics.CacheLookups.WithLabelValues("miss").Inc()
	} else {
		f.logger.Info("force refresh", "path", path)
		f.metrics.CacheLookups.WithLabelValues("forced").Inc()
	}

	tmp := path + ".part"
	var lastErr error

	for attempt := 1; attempt <= maxDownloadAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		err := f.downloadOnce(ctx, safeURL, tmp)
		if err == nil {
			if err = ValidateAsset(tmp, f.cfg.MinBytes); err == nil {
				if err = os.Rename(tmp, path); err == nil {
					f.logger.Info("download complete", "path", path, "attempt", attempt)
					f.metrics.Downloads.WithLabelValues("success").Inc()
					return path, nil
				}
			}
		}

		lastErr = err
		last := attempt == maxDownloadAttempts
		if last {
			f.logger.Error("download failed", "url", safeURL, "attempt", attempt, "error", err)
			break
		}

		f.logger.Info("download attempt failed, retrying",
			"url", safeURL, "attempt", attempt, "max_attempts", maxDownloadAttempts, "error", err)
		f.metrics.DownloadRetries.Inc()
		f.clock.Sleep(backoffBase * time.Duration(attempt))
	}

	os.Remove(tmp)
	f.metrics.Downloads.WithLabelValues("failure").Inc()
	return "", &domain.DownloadError{URL: safeURL, Err: lastErr}
}

// downloadOnce performs a single GET into tmp, going through the breaker so a
// persistently failing upstream eventually fails fast.
func (f *Fetcher) downloadOnce(ctx context.Context, url, tmp string) error {
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear temp file: %w", err)
	}

	_, err := f.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}

		out, err := os.Create(tmp)
		if err != nil {
			return nil, fmt.Errorf("create temp file: %w", err)
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			out.Close()
			return nil, fmt.Errorf("write temp file: %w", err)
		}
		return nil, out.Close()
	})
	return err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Reloader interface {
	Reload() error
}

// DatabaseSource ties a downloadable mmdb file to the repository serving it.
type DatabaseSource struct {
	Name     string
	URL      string
	Path     string
	Reloader Reloader
}

type DatabaseFetcher struct {
	logger     *zap.Logger
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

func NewDatabaseFetcher(logger *zap.Logger) *DatabaseFetcher {
	return &DatabaseFetcher{
		logger: logger,
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
				ForceAttemptHTTP2: true,
			},
		},
		maxRetries: 3,
		retryDelay: 5 * time.Second,
	}
}

// EnsureDatabases downloads every source whose file is missing. Sources
// without a URL are skipped.
func (f *DatabaseFetcher) EnsureDatabases(ctx context.Context, sources []DatabaseSource) error {
	var missing []DatabaseSource
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		if _, err := os.Stat(src.Path); err == nil {
			f.logger.Info("Existing database found, skipping initial download",
				zap.String("database", src.Name),
				zap.String("path", src.Path))
			continue
		}
		missing = append(missing, src)
	}
	return f.download(ctx, missing)
}

// Refresh downloads every source with a URL and reloads its repository.
func (f *DatabaseFetcher) Refresh(ctx context.Context, sources []DatabaseSource) error {
	var remote []DatabaseSource
	for _, src := range sources {
		if src.URL != "" {
			remote = append(remote, src)
		}
	}
	if err := f.download(ctx, remote); err != nil {
		return err
	}

	var errs []error
	for _, src := range remote {
		if src.Reloader == nil {
			continue
		}
		if err := src.Reloader.Reload(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Start refreshes the databases every interval until ctx is cancelled.
func (f *DatabaseFetcher) Start(ctx context.Context, sources []DatabaseSource, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := f.Refresh(ctx, sources); err != nil {
					f.logger.Error("scheduled database refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

func (f *DatabaseFetcher) download(ctx context.Context, sources []DatabaseSource) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			if _, err := f.Fetch(ctx, src.URL, src.Path); err != nil {
				return fmt.Errorf("%s: %w", src.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Fetch downloads url into dest, retrying with a linear backoff. The file
// is replaced atomically so readers never observe a partial database.
func (f *DatabaseFetcher) Fetch(ctx context.Context, url, dest string) (int64, error) {
	var lastErr error

	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Duration(attempt) * f.retryDelay):
			}
		}

		n, err := f.fetchOnce(ctx, url, dest)
		if err == nil {
			return n, nil
		}

		lastErr = err
		f.logger.Warn("Failed to fetch database, retrying...",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return 0, fmt.Errorf("failed after %d attempts: %w", f.maxRetries, lastErr)
}

func (f *DatabaseFetcher) fetchOnce(ctx context.Context, url, dest string) (int64, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "geogate/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating database directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("writing database: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("empty response body")
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("replacing database: %w", err)
	}

	f.logger.Info("Downloaded database",
		zap.String("url", url),
		zap.String("path", dest),
		zap.Int64("bytes", n),
		zap.Duration("download_time", time.Since(startTime)))

	return n, nil
}

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second
	defaultTimeout  = 60 * time.Second
)

// Downloader fetches remote documents with a bounded, fixed-backoff retry.
// A 404 is final and is not retried.
type Downloader struct {
	Client   *http.Client
	Attempts int
	Backoff  time.Duration
	Logger   *zap.Logger
}

// NewDownloader creates a Downloader with three attempts two seconds apart.
func NewDownloader(logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		Client:   &http.Client{Timeout: defaultTimeout},
		Attempts: defaultAttempts,
		Backoff:  defaultBackoff,
		Logger:   logger,
	}
}

// NormalizeURL rewrites GitHub "refs/heads" raw links to the short form
// raw.githubusercontent.com serves directly.
func NormalizeURL(raw string) string {
	return strings.Replace(raw, "/refs/heads/main/", "/main/", 1)
}

// Fetch downloads rawURL into dest. The file is written to a temporary
// name first so a failed download never leaves a truncated document.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dest string) error {
	url := NormalizeURL(rawURL)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	attempts := max(d.Attempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = d.fetchOnce(ctx, url, dest)
		if lastErr == nil {
			d.Logger.Debug("downloaded knowledge source", zap.String("url", url), zap.String("path", dest))
			return nil
		}
		if errors.Is(lastErr, ErrNotFound) || ctx.Err() != nil {
			return lastErr
		}
		d.Logger.Warn("download failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(lastErr))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.Backoff):
		}
	}
	return fmt.Errorf("download %s: %w", url, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

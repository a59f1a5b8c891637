package axe

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// maxSourceSize caps a downloaded engine script.
const maxSourceSize = 16 << 20

// SourceOption configures LoadSource.
type SourceOption func(*sourceLoader)

// WithCacheDir stores downloaded scripts in dir and reuses them afterwards.
func WithCacheDir(dir string) SourceOption {
	return func(l *sourceLoader) {
		l.cacheDir = dir
	}
}

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(l *sourceLoader) {
		l.client = client
	}
}

// WithSourceLogger sets the logger.
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(l *sourceLoader) {
		l.logger = logger
	}
}

type sourceLoader struct {
	cacheDir string
	client   *http.Client
	logger   *slog.Logger
}

// LoadSource returns the axe-core script found at location, which is either a
// local file path or an http(s) URL. Downloads are cached when a cache
// directory is configured.
func LoadSource(ctx context.Context, location string, opts ...SourceOption) (string, error) {
	l := &sourceLoader{
		client: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}

	if !isRemote(location) {
		data, err := os.ReadFile(filepath.Clean(location))
		if err != nil {
			return "", fmt.Errorf("failed to read axe-core script: %w", err)
		}
		return nonEmpty(data)
	}

	cached := l.cachePath(location)
	if cached != "" {
		if data, err := os.ReadFile(cached); err == nil && len(data) > 0 {
			l.logger.Debug("using cached axe-core script", "path", cached)
			return string(data), nil
		}
	}

	data, err := l.download(ctx, location)
	if err != nil {
		return "", err
	}
	source, err := nonEmpty(data)
	if err != nil {
		return "", err
	}

	if cached != "" {
		if err := writeCache(cached, data); err != nil {
			l.logger.Warn("failed to cache axe-core script", "path", cached, "error", err)
		}
	}
	return source, nil
}

func (l *sourceLoader) download(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build axe-core request: %w", err)
	}
	l.logger.Debug("downloading axe-core script", "url", location)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download axe-core script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download axe-core script: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read axe-core script: %w", err)
	}
	return data, nil
}

// cachePath names the cache file after a digest of the URL so that
// different engine versions never collide.
func (l *sourceLoader) cachePath(location string) string {
	if l.cacheDir == "" {
		return ""
	}
	sum := sha3.Sum256([]byte(location))
	return filepath.Join(l.cacheDir, "axe-"+hex.EncodeToString(sum[:8])+".js")
}

func writeCache(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func nonEmpty(data []byte) (string, error) {
	if strings.TrimSpace(string(data)) == "" {
		return "", ErrEmptySource
	}
	return string(data), nil
}

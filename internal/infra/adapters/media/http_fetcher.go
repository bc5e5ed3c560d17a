package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"media-insight/internal/domain"
	"media-insight/internal/domain/ports/adapter"
)

var _ adapter.MediaFetcher = (*HTTPFetcher)(nil)

// HTTPFetcher downloads media over HTTP into a local directory. Fetch is
// idempotent: when the target file already exists it is reused, so a resumed
// job never downloads twice.
type HTTPFetcher struct {
	dir    string
	client *http.Client
}

func NewHTTPFetcher(dir string, timeout time.Duration) (*HTTPFetcher, error) {
	if dir == "" {
		return nil, errors.New("media dir empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPFetcher{
		dir:    dir,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// localName derives a stable filename from the URL so retries land on the
// same path. Unusable URL basenames fall back to a hash of the whole URL.
func localName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil {
		base := path.Base(u.Path)
		if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
			return base
		}
	}
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:]) + ".mp4"
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", domain.ErrInvalidArgument
	}
	target := filepath.Join(f.dir, localName(rawURL))

	if st, err := os.Stat(target); err == nil && st.Size() > 0 {
		return target, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch media: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: fetch media http %d", domain.ErrUnavailable, resp.StatusCode)
	}

	// Download to a temp name first so a partial file never looks complete.
	tmp, err := os.CreateTemp(f.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: download body: %v", domain.ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("finalize download: %w", err)
	}
	return target, nil
}

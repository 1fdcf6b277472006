package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
)

// Fetcher downloads order files over HTTP(S) or from Cloud Storage.
type Fetcher struct {
	httpClient    *http.Client
	storageClient *storage.Client
}

// NewFetcher returns a Fetcher. A nil httpClient uses http.DefaultClient; a
// nil storageClient disables gs:// URLs.
func NewFetcher(httpClient *http.Client, storageClient *storage.Client) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{httpClient: httpClient, storageClient: storageClient}
}

// Fetch writes the resource at rawURL to destPath, creating parent
// directories. Nothing is retried and the body is written as received.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destPath string) (bool, error) {
	src, err := f.open(ctx, rawURL)
	if err != nil {
		return false, err
	}
	defer src.Close()

	if err := writeFile(destPath, src); err != nil {
		return false, err
	}
	return true, nil
}

func (f *Fetcher) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid file url %q: %w", rawURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", rawURL, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, fmt.Errorf("GET %s: unexpected status %s", rawURL, resp.Status)
		}
		return resp.Body, nil

	case "gs":
		if f.storageClient == nil {
			return nil, fmt.Errorf("cannot fetch %s: no storage client configured", rawURL)
		}
		object := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || object == "" {
			return nil, fmt.Errorf("invalid gs url %q: want gs://bucket/object", rawURL)
		}
		r, err := f.storageClient.Bucket(u.Host).Object(object).NewReader(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", rawURL, err)
		}
		return r, nil

	default:
		return nil, fmt.Errorf("unsupported file url scheme %q", u.Scheme)
	}
}

// writeFile streams src into path. A partially written file is removed.
func writeFile(path string, src io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create download folder: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create local file at %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close local file: %w", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to copy file body: %w", err)
	}
	return nil
}

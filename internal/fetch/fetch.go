// Package fetch retrieves the raw bytes of attached images.
//
// An image is addressed by an opaque reference. Router dispatches on the
// reference's scheme: http(s) media URLs, inline data: URIs and local files.
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrTooLarge is returned when an image exceeds the configured size limit.
var ErrTooLarge = errors.New("image exceeds size limit")

// Fetcher retrieves the bytes of one image.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// HTTPConfig configures the media URL fetcher.
type HTTPConfig struct {
	Timeout  time.Duration
	MaxBytes int64

	// Basic auth credentials, sent when both are set.
	Username string
	Password string
}

// HTTPFetcher downloads images from media URLs.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	username string
	password string
}

// NewHTTPFetcher creates a fetcher for http and https references.
func NewHTTPFetcher(cfg HTTPConfig) *HTTPFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		maxBytes: cfg.MaxBytes,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Fetch downloads the image at ref.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.username != "" && f.password != "" {
		req.SetBasicAuth(f.username, f.password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media request failed with status %d", resp.StatusCode)
	}

	return readLimited(resp.Body, f.maxBytes)
}

// FileFetcher reads images from the local filesystem. References may be
// plain paths or file:// URLs.
type FileFetcher struct {
	MaxBytes int64
}

// Fetch reads the file named by ref.
func (f FileFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	path := strings.TrimPrefix(ref, "file://")
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readLimited(file, f.MaxBytes)
}

// DataFetcher decodes inline data: URIs. Only base64 payloads are supported.
type DataFetcher struct{}

// Fetch returns the payload of a data: URI.
func (DataFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URI has no payload")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	return data, nil
}

// DataURI wraps raw base64 image data as a data: reference.
func DataURI(mimeType, b64 string) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + b64
}

// Router picks a fetcher by reference scheme.
type Router struct {
	HTTP Fetcher
	File Fetcher
	Data Fetcher
}

// NewRouter returns a router backed by the given HTTP fetcher. Local file
// references are rejected unless allowFiles is set.
func NewRouter(httpFetcher Fetcher, allowFiles bool, maxBytes int64) *Router {
	r := &Router{HTTP: httpFetcher, Data: DataFetcher{}}
	if allowFiles {
		r.File = FileFetcher{MaxBytes: maxBytes}
	}
	return r
}

// Fetch dispatches ref to the matching fetcher.
func (r *Router) Fetch(ctx context.Context, ref string) ([]byte, error) {
	var target Fetcher
	switch scheme(ref) {
	case "http", "https":
		target = r.HTTP
	case "data":
		target = r.Data
	case "file", "":
		target = r.File
	}
	if target == nil {
		return nil, fmt.Errorf("unsupported image reference %q", truncate(ref, 64))
	}
	return target.Fetch(ctx, ref)
}

func scheme(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		return "data"
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

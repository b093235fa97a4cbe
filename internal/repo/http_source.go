package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

// HTTPSource downloads snapshots from an object store or file server and
// decodes them in memory by file extension.
type HTTPSource struct {
	baseURL    string
	maxBytes   int64
	httpClient *http.Client
	json       *JSONSource
	parquet    *ParquetSource
}

// NewHTTPSource constructs a source resolving relative references against baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration, maxBytes int64) *HTTPSource {
	if maxBytes <= 0 {
		maxBytes = 512 << 20
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxBytes:   maxBytes,
		httpClient: &http.Client{Timeout: timeout},
		json:       NewJSONSource(),
		parquet:    NewParquetSource(),
	}
}

// Load fetches ref, which is either an absolute http(s) URL or a path below the base URL.
func (s *HTTPSource) Load(ctx context.Context, ref string) (*models.Table, error) {
	if s == nil {
		return nil, fmt.Errorf("http source not initialised")
	}
	endpoint := s.resolve(ref)
	if endpoint == "" {
		return nil, fmt.Errorf("http source: cannot resolve %q without a base URL", ref)
	}

	body, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", endpoint, err)
	}

	format, err := FormatOf(endpoint)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatParquet:
		return s.parquet.Decode(ctx, bytes.NewReader(body))
	default:
		return s.json.Decode(ctx, bytes.NewReader(body))
	}
}

func (s *HTTPSource) resolve(ref string) string {
	if IsRemote(ref) {
		return ref
	}
	if s.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(ref, "/")
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return s.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (s *HTTPSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > s.maxBytes {
		return nil, fmt.Errorf("snapshot exceeds %d bytes", s.maxBytes)
	}
	return body, nil
}

// IsRemote reports whether ref is an http or https URL.
func IsRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

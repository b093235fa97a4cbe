package repo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/instrumetriq/tier-inspector/internal/cache"
	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

// Format is a snapshot file encoding.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
)

// LatestRef selects the newest snapshot of a tier under the data directory.
const LatestRef = "latest"

// TableSource materialises a snapshot table.
type TableSource interface {
	Load(ctx context.Context, ref string) (*models.Table, error)
}

// FormatOf picks the decoder from the file extension of ref, ignoring any URL query.
func FormatOf(ref string) (Format, error) {
	name := ref
	if IsRemote(ref) {
		if u, err := url.Parse(ref); err == nil {
			name = u.Path
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".parquet", ".pq":
		return FormatParquet, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported snapshot format %q", filepath.Ext(name))
	}
}

// Loader resolves snapshot references and dispatches to the matching source.
type Loader struct {
	logger  *slog.Logger
	dataDir string
	json    TableSource
	parquet TableSource
	remote  TableSource
	cache   *cache.TableCache
}

// NewLoader constructs a Loader. remote may be nil when only local files are served.
func NewLoader(logger *slog.Logger, dataDir string, remote *HTTPSource) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		logger:  logger,
		dataDir: dataDir,
		json:    NewJSONSource(),
		parquet: NewParquetSource(),
	}
	if remote != nil {
		l.remote = remote
	}
	return l
}

// UseCache enables reuse of decoded tables. Local files are keyed by path,
// size and modification time so rewritten snapshots are decoded again.
func (l *Loader) UseCache(c *cache.TableCache) {
	l.cache = c
}

// Resolve turns a request reference into a loadable path. An empty reference or
// "latest" triggers discovery for tier; relative paths are joined to the data dir.
func (l *Loader) Resolve(tier, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "" || strings.EqualFold(ref, LatestRef):
		return LatestSnapshot(l.dataDir, tier)
	case IsRemote(ref), filepath.IsAbs(ref), l.dataDir == "":
		return ref, nil
	default:
		return filepath.Join(l.dataDir, ref), nil
	}
}

// Load materialises the snapshot at path.
func (l *Loader) Load(ctx context.Context, path string) (*models.Table, error) {
	started := time.Now()
	format, err := FormatOf(path)
	if err != nil {
		return nil, utils.NewPathError("load snapshot", path, "detect format", err)
	}

	var source TableSource
	switch {
	case IsRemote(path):
		if l.remote == nil {
			return nil, utils.NewPathError("load snapshot", path, "remote sources disabled", nil)
		}
		source = l.remote
	case format == FormatParquet:
		source = l.parquet
	default:
		source = l.json
	}

	key := l.cacheKey(path)
	if key != "" {
		if table, ok := l.cache.Get(key); ok {
			l.logger.Debug("snapshot cache hit", slog.String("path", path), slog.Int("records", table.Len()))
			return table, nil
		}
	}

	table, err := source.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if key != "" {
		l.cache.Set(key, table)
	}
	l.logger.Debug("snapshot loaded",
		slog.String("path", path),
		slog.String("format", string(format)),
		slog.Int("records", table.Len()),
		slog.Int("columns", table.NumColumns()),
		slog.Duration("elapsed", time.Since(started)),
	)
	return table, nil
}

func (l *Loader) cacheKey(path string) string {
	if l.cache == nil {
		return ""
	}
	if IsRemote(path) {
		return path
	}
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}

// LatestSnapshot finds the newest snapshot file for tier. It looks in the
// lexically greatest week_* folder of dir, or in dir itself when no week
// folders exist, for *_<tier>.parquet and then *_<tier>.jsonl / .json.
func LatestSnapshot(dir, tier string) (string, error) {
	if tier == "" {
		return "", utils.NewPathError("discover snapshot", dir, "tier required for discovery", nil)
	}
	if dir == "" {
		dir = "."
	}

	weeks, err := filepath.Glob(filepath.Join(dir, "week_*"))
	if err != nil {
		return "", utils.NewPathError("discover snapshot", dir, "glob week folders", err)
	}
	folders := weeks[:0]
	for _, w := range weeks {
		if info, err := os.Stat(w); err == nil && info.IsDir() {
			folders = append(folders, w)
		}
	}
	search := dir
	if len(folders) > 0 {
		sort.Sort(sort.Reverse(sort.StringSlice(folders)))
		search = folders[0]
	}

	for _, ext := range []string{".parquet", ".jsonl", ".json"} {
		matches, err := filepath.Glob(filepath.Join(search, "*_"+tier+ext))
		if err != nil {
			return "", utils.NewPathError("discover snapshot", search, "glob snapshots", err)
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[len(matches)-1], nil
		}
	}
	return "", utils.NewPathError("discover snapshot", search, fmt.Sprintf("no %s snapshot found", tier), fs.ErrNotExist)
}

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/instrumetriq/tier-inspector/internal/models"
	"github.com/instrumetriq/tier-inspector/internal/utils"
)

var manifestValidator = validator.New()

// ManifestRegistry resolves tier names to manifests.
type ManifestRegistry struct {
	manifests map[string]models.Manifest
}

// NewManifestRegistry validates and registers the given manifests. Later
// manifests for the same tier replace earlier ones.
func NewManifestRegistry(manifests ...models.Manifest) (*ManifestRegistry, error) {
	r := &ManifestRegistry{manifests: make(map[string]models.Manifest, len(manifests))}
	for _, m := range manifests {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates m and stores it under its normalised tier name.
func (r *ManifestRegistry) Register(m models.Manifest) error {
	m.Tier = NormalizeTier(m.Tier)
	if err := ValidateManifest(m); err != nil {
		return err
	}
	r.manifests[m.Tier] = m
	return nil
}

// Get returns the manifest of tier.
func (r *ManifestRegistry) Get(tier string) (models.Manifest, error) {
	m, ok := r.manifests[NormalizeTier(tier)]
	if !ok {
		return models.Manifest{}, &UnknownTierError{Tier: tier}
	}
	return m, nil
}

// Tiers lists registered tiers in sorted order.
func (r *ManifestRegistry) Tiers() []string {
	tiers := make([]string, 0, len(r.manifests))
	for t := range r.manifests {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)
	return tiers
}

// NormalizeTier maps "1", "T1" and "Tier1" to "tier1".
func NormalizeTier(tier string) string {
	t := strings.ToLower(strings.TrimSpace(tier))
	switch {
	case t == "":
		return ""
	case strings.HasPrefix(t, "tier"):
		return "tier" + strings.TrimLeft(strings.TrimPrefix(t, "tier"), "_- ")
	case strings.HasPrefix(t, "t") && len(t) > 1 && t[1] >= '0' && t[1] <= '9':
		return "tier" + t[1:]
	case t[0] >= '0' && t[0] <= '9':
		return "tier" + t
	default:
		return t
	}
}

// LoadManifests returns the built-in manifests overlaid with every *.yaml or
// *.yml file in dir. A missing or empty dir yields the built-ins.
func LoadManifests(dir string, logger *slog.Logger) (*ManifestRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry, err := NewManifestRegistry(BuiltinManifests()...)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return registry, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("manifest directory not found, using built-in manifests", slog.String("path", dir))
			return registry, nil
		}
		return nil, utils.NewPathError("load manifests", dir, "read directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		m, err := ReadManifest(path)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(m); err != nil {
			return nil, utils.NewPathError("load manifests", path, "invalid manifest", err)
		}
		logger.Debug("manifest loaded", slog.String("tier", m.Tier), slog.Int("version", m.Version), slog.String("path", path))
	}
	return registry, nil
}

// ReadManifest decodes one YAML manifest file.
func ReadManifest(path string) (models.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Manifest{}, utils.NewPathError("read manifest", path, "read file", err)
	}
	var m models.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return models.Manifest{}, utils.NewPathError("read manifest", path, "decode yaml", err)
	}
	m.Tier = NormalizeTier(m.Tier)
	return m, nil
}

// ValidateManifest checks struct tags, then cross-field rules the tags cannot express.
func ValidateManifest(m models.Manifest) error {
	if err := manifestValidator.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("manifest %s: %s", m.Tier, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("manifest %s: %w", m.Tier, err)
	}

	columns := make(map[string]models.ColumnSpec, len(m.Columns))
	for _, c := range m.Columns {
		if _, dup := columns[c.Name]; dup {
			return fmt.Errorf("manifest %s: duplicate column %s", m.Tier, c.Name)
		}
		columns[c.Name] = c
		switch c.Presence.Rule {
		case models.PresenceNonEmpty:
			if c.Kind != models.ColumnArray {
				return fmt.Errorf("manifest %s: column %s: non_empty applies to array columns", m.Tier, c.Name)
			}
		case models.PresenceFieldNotNull:
			if c.Kind != models.ColumnStruct {
				return fmt.Errorf("manifest %s: column %s: field_not_null applies to struct columns", m.Tier, c.Name)
			}
		}
	}

	features := make(map[string]struct{}, len(m.Features))
	for _, f := range m.Features {
		if _, dup := features[f.Name]; dup {
			return fmt.Errorf("manifest %s: duplicate feature %s", m.Tier, f.Name)
		}
		features[f.Name] = struct{}{}
	}

	if ts := m.TimeSeries; ts != nil {
		c, ok := columns[ts.Column]
		if !ok || c.Kind != models.ColumnArray {
			return fmt.Errorf("manifest %s: time series column %s must be a declared array column", m.Tier, ts.Column)
		}
	}
	return nil
}

func field(name, column string, path ...string) models.FieldRef {
	return models.FieldRef{Name: name, Column: column, Path: path}
}

func optionalField(name string) models.FieldRef {
	return models.FieldRef{Name: name, Column: name, Optional: true}
}

func scalar(name, typ string) models.ColumnSpec {
	return models.ColumnSpec{Name: name, Kind: models.ColumnScalar, ScalarType: typ}
}

func structColumn(name string) models.ColumnSpec {
	return models.ColumnSpec{Name: name, Kind: models.ColumnStruct}
}

// BuiltinManifests returns the manifests of the three published tiers. Only the
// columns the inspection reads are declared; others are classified as undeclared.
func BuiltinManifests() []models.Manifest {
	tier1 := models.Manifest{
		Tier:         "tier1",
		Version:      1,
		Description:  "Explorer: flat daily snapshot",
		SymbolColumn: "symbol",
		TimeColumn:   "snapshot_ts",
		Columns: []models.ColumnSpec{
			scalar("symbol", "string"),
			scalar("snapshot_ts", "timestamp"),
			scalar("sentiment_mean_score", "float64"),
			scalar("sentiment_is_silent", "bool"),
			scalar("sentiment_score_flip", "bool"),
		},
		Distributions: models.DistributionSpec{
			Quantiles: []models.FieldRef{field("sentiment_mean_score", "sentiment_mean_score")},
			Booleans: []models.FieldRef{
				field("sentiment_is_silent", "sentiment_is_silent"),
				field("sentiment_score_flip", "sentiment_score_flip"),
				optionalField("sentiment_extreme_bearish"),
				optionalField("sentiment_extreme_bullish"),
			},
			Ranges: []models.FieldRef{
				optionalField("sentiment_posts_total"),
				optionalField("sentiment_replies_sum"),
				optionalField("sentiment_retweets_sum"),
				optionalField("sentiment_likes_sum"),
			},
		},
	}

	tier2 := models.Manifest{
		Tier:         "tier2",
		Version:      1,
		Description:  "Analyst: nested snapshot",
		SymbolColumn: "symbol",
		TimeColumn:   "snapshot_ts",
		Columns: []models.ColumnSpec{
			scalar("symbol", "string"),
			scalar("snapshot_ts", "timestamp"),
			structColumn("spot_raw"),
			structColumn("scores"),
			structColumn("twitter_sentiment_last_cycle"),
		},
		Features: []models.FieldRef{
			field("spot_mid", "spot_raw", "mid"),
			field("score_final", "scores", "final"),
			field("posts_total", "twitter_sentiment_last_cycle", "posts_total"),
			field("mean_score", "twitter_sentiment_last_cycle", "hybrid_decision_stats", "mean_score"),
		},
		MinCorrelationRows: 5,
		Distributions: models.DistributionSpec{
			Ranges: []models.FieldRef{
				field("spot_mid", "spot_raw", "mid"),
				field("score_final", "scores", "final"),
				field("posts_total", "twitter_sentiment_last_cycle", "posts_total"),
			},
		},
	}

	tier3 := models.Manifest{
		Tier:         "tier3",
		Version:      1,
		Description:  "Researcher: nested snapshot with futures and spot price series",
		SymbolColumn: "symbol",
		TimeColumn:   "snapshot_ts",
		Columns: []models.ColumnSpec{
			scalar("symbol", "string"),
			scalar("snapshot_ts", "timestamp"),
			structColumn("spot_raw"),
			{
				Name:     "futures_raw",
				Kind:     models.ColumnStruct,
				Presence: models.PresenceSpec{Rule: models.PresenceFieldNotNull, Field: "contract"},
			},
			structColumn("scores"),
			structColumn("flags"),
			structColumn("twitter_sentiment_windows"),
			structColumn("twitter_sentiment_meta"),
			{
				Name:     "spot_prices",
				Kind:     models.ColumnArray,
				Presence: models.PresenceSpec{Rule: models.PresenceNonEmpty},
			},
		},
		Features: []models.FieldRef{
			field("spot_mid", "spot_raw", "mid"),
			field("spread_bps", "spot_raw", "spread_bps"),
			field("score", "scores", "final"),
			field("posts", "twitter_sentiment_windows", "last_cycle", "posts_total"),
			field("sentiment", "twitter_sentiment_windows", "last_cycle", "hybrid_decision_stats", "mean_score"),
			field("funding", "futures_raw", "funding_now"),
		},
		MinCorrelationRows: DefaultMinCorrelationRows,
		TimeSeries: &models.TimeSeriesSpec{
			Column:         "spot_prices",
			TimestampField: "ts",
			PayloadField:   "mid",
		},
		Distributions: models.DistributionSpec{
			Booleans: []models.FieldRef{
				field("spot_data_ok", "flags", "spot_data_ok"),
				field("twitter_data_ok", "flags", "twitter_data_ok"),
			},
			Ranges: []models.FieldRef{
				field("funding_now", "futures_raw", "funding_now"),
				field("posts_last_cycle", "twitter_sentiment_windows", "last_cycle", "posts_total"),
				field("posts_last_2_cycles", "twitter_sentiment_windows", "last_2_cycles", "posts_total"),
			},
		},
	}

	return []models.Manifest{tier1, tier2, tier3}
}

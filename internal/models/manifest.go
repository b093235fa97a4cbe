package models

// ColumnKind is the declared shape of a top-level column.
type ColumnKind string

const (
	ColumnScalar ColumnKind = "scalar"
	ColumnStruct ColumnKind = "struct"
	ColumnArray  ColumnKind = "array"
)

// Presence rule names accepted in manifests.
const (
	PresenceNotNull      = "not_null"
	PresenceNonEmpty     = "non_empty"
	PresenceFieldNotNull = "field_not_null"
)

// Manifest declares the schema and inspection plan of one tier.
type Manifest struct {
	Tier               string           `yaml:"tier" validate:"required"`
	Version            int              `yaml:"version" validate:"gte=1"`
	Description        string           `yaml:"description"`
	SymbolColumn       string           `yaml:"symbolColumn" validate:"required"`
	TimeColumn         string           `yaml:"timeColumn" validate:"required"`
	Columns            []ColumnSpec     `yaml:"columns" validate:"required,min=1,dive"`
	Features           []FieldRef       `yaml:"features" validate:"dive"`
	MinCorrelationRows int              `yaml:"minCorrelationRows" validate:"gte=0"`
	TimeSeries         *TimeSeriesSpec  `yaml:"timeSeries"`
	Distributions      DistributionSpec `yaml:"distributions"`
}

// ColumnSpec declares one column and, for nested columns, its presence predicate.
type ColumnSpec struct {
	Name       string       `yaml:"name" validate:"required"`
	Kind       ColumnKind   `yaml:"kind" validate:"required,oneof=scalar struct array"`
	ScalarType string       `yaml:"type"`
	Presence   PresenceSpec `yaml:"presence"`
}

// PresenceSpec selects the rule that decides whether a cell counts as populated.
// An empty rule means not_null.
type PresenceSpec struct {
	Rule  string `yaml:"rule" validate:"omitempty,oneof=not_null non_empty field_not_null"`
	Field string `yaml:"field" validate:"required_if=Rule field_not_null"`
}

// FieldRef addresses a value by column and key-path. An empty path selects the cell itself.
// Optional distribution fields are profiled only when their column exists.
type FieldRef struct {
	Name     string   `yaml:"name" validate:"required"`
	Column   string   `yaml:"column" validate:"required"`
	Path     []string `yaml:"path"`
	Optional bool     `yaml:"optional"`
}

// TimeSeriesSpec names the array-of-struct column and its element fields.
type TimeSeriesSpec struct {
	Column         string `yaml:"column" validate:"required"`
	TimestampField string `yaml:"timestampField" validate:"required"`
	PayloadField   string `yaml:"payloadField"`
}

// DistributionSpec lists fields profiled beyond coverage.
type DistributionSpec struct {
	Quantiles []FieldRef `yaml:"quantiles" validate:"dive"`
	Booleans  []FieldRef `yaml:"booleans" validate:"dive"`
	Ranges    []FieldRef `yaml:"ranges" validate:"dive"`
}

// Column returns the declared column for name.
func (m Manifest) Column(name string) (ColumnSpec, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// NestedColumns returns the struct and array columns in declaration order.
func (m Manifest) NestedColumns() []ColumnSpec {
	nested := make([]ColumnSpec, 0, len(m.Columns))
	for _, c := range m.Columns {
		if c.Kind == ColumnStruct || c.Kind == ColumnArray {
			nested = append(nested, c)
		}
	}
	return nested
}

// RequiredColumns lists every column the manifest references, in first-reference order.
// Optional distribution fields are not required.
func (m Manifest) RequiredColumns() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(m.Columns)+2)
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, c := range m.Columns {
		add(c.Name)
	}
	add(m.SymbolColumn)
	add(m.TimeColumn)
	for _, f := range m.Features {
		add(f.Column)
	}
	if m.TimeSeries != nil {
		add(m.TimeSeries.Column)
	}
	for _, group := range [][]FieldRef{m.Distributions.Quantiles, m.Distributions.Booleans, m.Distributions.Ranges} {
		for _, f := range group {
			if !f.Optional {
				add(f.Column)
			}
		}
	}
	return out
}

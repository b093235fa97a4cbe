package engine

import (
	"fmt"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

// MissingColumnError halts an inspection when the table lacks a column its manifest requires.
type MissingColumnError struct {
	Tier   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column: %s", e.Column)
}

// TimestampError is raised in strict mode when a timestamp cannot be parsed.
type TimestampError struct {
	Column string
	Record int
	Value  models.Value
	Err    error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("column %s record %d: unparsable timestamp %q: %v", e.Column, e.Record, e.Value.Text(), e.Err)
}

func (e *TimestampError) Unwrap() error {
	return e.Err
}

// UnknownTierError reports a tier with no registered manifest.
type UnknownTierError struct {
	Tier string
}

func (e *UnknownTierError) Error() string {
	return fmt.Sprintf("unknown tier %q", e.Tier)
}

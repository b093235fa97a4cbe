package extractors

import "github.com/instrumetriq/tier-inspector/internal/models"

// Outcome classifies how a key-path lookup ended.
type Outcome uint8

const (
	// Resolved means every key matched; the returned value may itself be null.
	Resolved Outcome = iota
	// Missing means a key was absent or a link on the path was null.
	Missing
	// Mismatch means a link on the path was a non-null value that is not a Struct.
	Mismatch
)

// Lookup walks path from v. It never fails: traversal stops at the first link
// that is not a Struct and reports why.
func Lookup(v models.Value, path []string) (models.Value, Outcome) {
	cur := v
	for _, key := range path {
		s, ok := cur.AsStruct()
		if !ok {
			if cur.IsNull() {
				return models.Null(), Missing
			}
			return models.Null(), Mismatch
		}
		next, ok := s.Get(key)
		if !ok {
			return models.Null(), Missing
		}
		cur = next
	}
	return cur, Resolved
}

// Get returns the value at path, or def when any link is missing or not a Struct.
// An empty path returns v unchanged.
func Get(v models.Value, path []string, def models.Value) models.Value {
	got, outcome := Lookup(v, path)
	if outcome != Resolved {
		return def
	}
	return got
}

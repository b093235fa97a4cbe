package engine

import "github.com/instrumetriq/tier-inspector/internal/models"

// PresencePredicate decides whether a cell counts as populated for coverage.
type PresencePredicate func(models.Value) bool

// NotNull is the default predicate.
func NotNull(v models.Value) bool {
	return !v.IsNull()
}

// NonEmpty holds for arrays with at least one element.
func NonEmpty(v models.Value) bool {
	items, ok := v.AsArray()
	return ok && len(items) > 0
}

// FieldNotNull holds for structs whose named sub-field is present and non-null.
// A struct can be non-null yet carry no payload, e.g. futures data without a contract.
func FieldNotNull(field string) PresencePredicate {
	return func(v models.Value) bool {
		s, ok := v.AsStruct()
		if !ok {
			return false
		}
		f, ok := s.Get(field)
		return ok && !f.IsNull()
	}
}

// PresenceFor builds the predicate declared by spec.
func PresenceFor(spec models.PresenceSpec) PresencePredicate {
	switch spec.Rule {
	case models.PresenceNonEmpty:
		return NonEmpty
	case models.PresenceFieldNotNull:
		return FieldNotNull(spec.Field)
	default:
		return NotNull
	}
}

// presenceRule renders the rule for reports.
func presenceRule(spec models.PresenceSpec) string {
	switch spec.Rule {
	case models.PresenceNonEmpty:
		return models.PresenceNonEmpty
	case models.PresenceFieldNotNull:
		return models.PresenceFieldNotNull + "(" + spec.Field + ")"
	default:
		return models.PresenceNotNull
	}
}

package state

// Policy is the merge behavior applied to one field of the game document.
// Adding protection for a new field is a table entry, not new branching.
type Policy int

const (
	// PolicyReplace overwrites the current value with the delta value.
	PolicyReplace Policy = iota

	// PolicyShallowMerge merges nested objects key-wise, recursing one
	// level for plain nested objects. Unspecified keys are untouched.
	PolicyShallowMerge

	// PolicyImmutableAdditive fields only ever grow. Plain arrays are
	// union-added; "removed" entries are ignored.
	PolicyImmutableAdditive

	// PolicyProtectedAdditive fields change only through explicit
	// added/removed sets. Plain arrays are treated as add-only and logged.
	PolicyProtectedAdditive

	// PolicyIdentityProtected fields are write-once: the existing value
	// wins over late write attempts.
	PolicyIdentityProtected
)

func (p Policy) String() string {
	switch p {
	case PolicyReplace:
		return "replace"
	case PolicyShallowMerge:
		return "shallow-merge"
	case PolicyImmutableAdditive:
		return "immutable-additive"
	case PolicyProtectedAdditive:
		return "protected-additive"
	case PolicyIdentityProtected:
		return "identity-protected"
	default:
		return "unknown"
	}
}

// documentPolicies classifies the top-level keys of the game document.
// Keys not listed default to replace (scalars, arrays) or shallow merge
// (nested objects).
var documentPolicies = map[string]Policy{
	// Learned capabilities never shrink.
	"abilities": PolicyImmutableAdditive,
	"spells":    PolicyImmutableAdditive,
	"essences":  PolicyImmutableAdditive,

	// Possessions and relationships change only by explicit add/remove.
	"inventory": PolicyProtectedAdditive,
	"party":     PolicyProtectedAdditive,
	"npcs":      PolicyProtectedAdditive,
}

// characterPolicies classifies keys nested inside the character object.
var characterPolicies = map[string]Policy{
	"name":  PolicyIdentityProtected,
	"class": PolicyIdentityProtected,
	"rank":  PolicyIdentityProtected,

	"essences":  PolicyImmutableAdditive,
	"abilities": PolicyImmutableAdditive,
	"spells":    PolicyImmutableAdditive,

	"stats":     PolicyShallowMerge,
	"resources": PolicyShallowMerge,
}

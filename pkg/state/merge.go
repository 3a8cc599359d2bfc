package state

import (
	"fmt"
	"log/slog"
	"reflect"
)

// Merger folds an untrusted delta document into the authoritative game
// document under the field policy tables. It never errors on shape
// mismatches; unexpected shapes fall back to direct assignment with a
// warning. The merge is deterministic, and the add/remove effects on
// protected fields are idempotent under replay.
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a merger. A nil logger disables logging.
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Merger{logger: logger}
}

// Apply merges delta into current and returns the merged document plus any
// warnings raised along the way. The input maps are not mutated.
func (m *Merger) Apply(current, delta map[string]any) (map[string]any, []string) {
	merged := cloneMap(current)
	var warnings []string

	for key, dv := range delta {
		if key == "character" {
			cur, curOK := merged[key].(map[string]any)
			dm, dmOK := dv.(map[string]any)
			if dmOK {
				if !curOK {
					cur = map[string]any{}
				}
				var w []string
				merged[key], w = m.applyScoped(cur, dm, characterPolicies, "character.")
				warnings = append(warnings, w...)
				continue
			}
			// A non-object character delta is malformed; fall through to
			// the generic path so it still lands with a warning.
		}

		var w []string
		merged[key], w = m.applyField(merged[key], dv, policyFor(documentPolicies, key, merged[key], dv), key)
		warnings = append(warnings, w...)
	}

	return merged, warnings
}

// applyScoped merges one nested object under its own policy table.
func (m *Merger) applyScoped(current, delta map[string]any, policies map[string]Policy, prefix string) (map[string]any, []string) {
	merged := cloneMap(current)
	var warnings []string

	for key, dv := range delta {
		var w []string
		merged[key], w = m.applyField(merged[key], dv, policyFor(policies, key, merged[key], dv), prefix+key)
		warnings = append(warnings, w...)
	}

	return merged, warnings
}

// policyFor selects the policy for one key. Unlisted keys default to
// shallow merge when both sides are objects, replace otherwise.
func policyFor(policies map[string]Policy, key string, current, delta any) Policy {
	if p, ok := policies[key]; ok {
		return p
	}
	if _, ok := delta.(map[string]any); ok {
		if _, ok := current.(map[string]any); ok {
			return PolicyShallowMerge
		}
	}
	return PolicyReplace
}

func (m *Merger) applyField(current, delta any, policy Policy, field string) (any, []string) {
	switch policy {
	case PolicyImmutableAdditive:
		return m.applyAdditive(current, delta, field, false)
	case PolicyProtectedAdditive:
		return m.applyAdditive(current, delta, field, true)
	case PolicyIdentityProtected:
		if !isEmptyValue(current) {
			w := fmt.Sprintf("ignored write to identity field %q", field)
			m.logger.Warn("Identity field write ignored", "field", field)
			return current, []string{w}
		}
		return delta, nil
	case PolicyShallowMerge:
		cur, curOK := current.(map[string]any)
		dm, dmOK := delta.(map[string]any)
		if !curOK || !dmOK {
			w := fmt.Sprintf("field %q expected objects for shallow merge, assigned directly", field)
			m.logger.Warn("Shallow merge shape mismatch", "field", field)
			return delta, []string{w}
		}
		return mergeShallow(cur, dm, 1), nil
	default:
		return delta, nil
	}
}

// applyAdditive handles both additive policies. The delta is either a plain
// array (add-only) or an {added, removed} object. Removals are honored only
// for protected fields.
func (m *Merger) applyAdditive(current, delta any, field string, removable bool) (any, []string) {
	cur := toSlice(current)
	var warnings []string

	switch dv := delta.(type) {
	case []any:
		if removable {
			// A plain array on a protected field is ambiguous; it is
			// never a replacement.
			warnings = append(warnings, fmt.Sprintf("plain array on protected field %q treated as add-only", field))
			m.logger.Warn("Plain array on protected field treated as add-only", "field", field)
		}
		return union(cur, dv), warnings
	case map[string]any:
		added, _ := dv["added"].([]any)
		merged := union(cur, added)
		if removed, ok := dv["removed"].([]any); ok && len(removed) > 0 {
			if removable {
				merged = difference(merged, removed)
			} else {
				warnings = append(warnings, fmt.Sprintf("ignored removal from immutable field %q", field))
				m.logger.Warn("Removal from immutable field ignored", "field", field)
			}
		}
		return merged, warnings
	case nil:
		return cur, nil
	default:
		warnings = append(warnings, fmt.Sprintf("field %q expected array or added/removed object, assigned directly", field))
		m.logger.Warn("Additive field shape mismatch", "field", field, "type", fmt.Sprintf("%T", delta))
		return delta, warnings
	}
}

// union appends entries of add not already present in base, preserving order.
func union(base, add []any) []any {
	out := make([]any, len(base))
	copy(out, base)
	for _, v := range add {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// difference removes entries of rem from base, preserving order.
func difference(base, rem []any) []any {
	out := make([]any, 0, len(base))
	for _, v := range base {
		if !contains(rem, v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []any, v any) bool {
	for _, e := range list {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

// mergeShallow overwrites cur's keys with d's, recursing depth levels for
// plain nested objects. cur is not mutated.
func mergeShallow(cur, d map[string]any, depth int) map[string]any {
	out := cloneMap(cur)
	for k, v := range d {
		if depth > 0 {
			if cm, ok := out[k].(map[string]any); ok {
				if dm, ok := v.(map[string]any); ok {
					out[k] = mergeShallow(cm, dm, depth-1)
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}

// toSlice coerces the current value of an additive field to a slice.
// A scalar current value is treated as a one-element list rather than lost.
func toSlice(v any) []any {
	switch cv := v.(type) {
	case nil:
		return nil
	case []any:
		return cv
	case []string:
		out := make([]any, len(cv))
		for i, s := range cv {
			out[i] = s
		}
		return out
	default:
		return []any{cv}
	}
}

func isEmptyValue(v any) bool {
	switch cv := v.(type) {
	case nil:
		return true
	case string:
		return cv == ""
	case []any:
		return len(cv) == 0
	case map[string]any:
		return len(cv) == 0
	default:
		return false
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

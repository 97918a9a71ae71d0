// Package policy reads custodian policy definitions, layers them across policy
// source paths and prepares them for a generated custodian config.
package policy

import (
	"sort"
	"strings"
)

// Policy is one custodian policy as decoded from YAML.
type Policy map[string]interface{}

// Set maps policy name to policy.
type Set map[string]Policy

// Name returns the policy's name key.
func (p Policy) Name() string {
	name, _ := p["name"].(string)
	return name
}

// Comment returns the first of comment, comments or description, or "unknown".
func (p Policy) Comment() string {
	for _, k := range []string{"comment", "comments", "description"} {
		if v, ok := p[k].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return "unknown"
}

// Clone returns a deep copy of the policy.
func (p Policy) Clone() Policy {
	return Policy(copyMap(p))
}

// Names returns the sorted policy names in the set.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v.Clone()
	}
	return out
}

// Update copies every policy in other over s.
func (s Set) Update(other Set) {
	for k, v := range other {
		s[k] = v.Clone()
	}
}

// Sorted returns the policies ordered by name.
func (s Set) Sorted() []Policy {
	out := make([]Policy, 0, len(s))
	for _, name := range s.Names() {
		out = append(out, s[name])
	}
	return out
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Policy:
		return t.Clone()
	case map[string]interface{}:
		return copyMap(t)
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// asMap returns v as a string keyed map when it is one.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Policy:
		return t, true
	}
	return nil, false
}

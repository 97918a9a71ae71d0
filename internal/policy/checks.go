package policy

import (
	"sort"
	"strings"
)

// default tag used by custodian's mark-for-op action
const defaultMarkTag = "maid_status"

// Check is a named sanity/safety rule a policy must pass.
type Check struct {
	Description string
	Passes      func(p Policy) bool
}

var Checks = []Check{
	{
		Description: "Policy includes a marked-for-op filter, but it is not the first filter.",
		Passes:      markedForOpFirst,
	},
	{
		Description: "Policy performs a mark action, but does not filter out resources already marked with that tag.",
		Passes:      markButNoTagFilter,
	},
	{
		Description: `mark-for-op action has message that does not end with ": {op}@{action_date}" (won't be parsed by c7n and will be ignored)`,
		Passes:      markForOpMessage,
	},
}

// CheckPolicies runs every check and returns the failed check descriptions
// keyed by policy name. An empty result means every policy passed.
func CheckPolicies(policies []Policy) map[string][]string {
	failures := map[string][]string{}
	for _, p := range policies {
		for _, c := range Checks {
			if !c.Passes(p) {
				failures[p.Name()] = append(failures[p.Name()], c.Description)
			}
		}
	}
	return failures
}

// FailedPolicies returns the sorted names in a CheckPolicies result.
func FailedPolicies(failures map[string][]string) []string {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func markedForOpFirst(p Policy) bool {
	filters, ok := p["filters"].([]interface{})
	if !ok {
		return true
	}
	if !containsType(filters, "marked-for-op") {
		return true
	}
	if len(filters) == 0 {
		return false
	}
	first, ok := asMap(filters[0])
	return ok && first["type"] == "marked-for-op"
}

func markButNoTagFilter(p Policy) bool {
	filters, ok := p["filters"].([]interface{})
	if !ok {
		return true
	}
	for _, tag := range markTags(p) {
		if !hasAbsentTagFilter(filters, tag) {
			return false
		}
	}
	return true
}

func markForOpMessage(p Policy) bool {
	for _, action := range markActions(p) {
		msg, ok := action["message"].(string)
		if !ok {
			continue
		}
		if !strings.HasSuffix(msg, ": {op}@{action_date}") {
			return false
		}
	}
	return true
}

func markActions(p Policy) []map[string]interface{} {
	actions, ok := p["actions"].([]interface{})
	if !ok {
		return nil
	}
	var out []map[string]interface{}
	for _, a := range actions {
		action, ok := asMap(a)
		if !ok || action["type"] != "mark-for-op" {
			continue
		}
		out = append(out, action)
	}
	return out
}

func markTags(p Policy) []string {
	var tags []string
	for _, action := range markActions(p) {
		tag, ok := action["tag"].(string)
		if !ok {
			tag = defaultMarkTag
		}
		tags = append(tags, tag)
	}
	return tags
}

func hasAbsentTagFilter(filters []interface{}, tag string) bool {
	for _, f := range filters {
		m, ok := asMap(f)
		if !ok || len(m) != 1 {
			continue
		}
		if m["tag:"+tag] == "absent" {
			return true
		}
	}
	return false
}

// containsType reports whether any map nested in v has the given type.
func containsType(v interface{}, t string) bool {
	switch val := v.(type) {
	case []interface{}:
		for _, item := range val {
			if containsType(item, t) {
				return true
			}
		}
	case map[string]interface{}:
		if val["type"] == t {
			return true
		}
		for _, item := range val {
			if containsType(item, t) {
				return true
			}
		}
	}
	return false
}

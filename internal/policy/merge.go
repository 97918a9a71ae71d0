package policy

import (
	"fmt"
	"reflect"

	"github.com/outofoffice3/custodian-policygen/internal/config"
)

// MergeError reports defaults that cannot be merged into a policy.
type MergeError struct {
	Policy  string
	Message string
}

func (e MergeError) Error() string {
	if e.Policy == "" {
		return "merge defaults: " + e.Message
	}
	return "merge defaults into policy [" + e.Policy + "]: " + e.Message
}

// Defaulter applies defaults.yml and account-wide settings to policies.
type Defaulter struct {
	Defaults        Policy
	AlwaysNotify    *config.AlwaysNotify
	ComponentTagKey string
}

// Apply returns a copy of p with defaults merged in, the component tag set on
// tagged modes, and the always-notify action added when configured.
func (d Defaulter) Apply(p Policy) (Policy, error) {
	name := p.Name()
	base := d.Defaults.Clone()
	if base == nil {
		base = Policy{}
	}
	merged, err := mergeConf(base, p.Clone(), name, nil)
	if err != nil {
		return nil, err
	}
	conf := Policy(merged)

	if mode, ok := asMap(conf["mode"]); ok {
		if mode["type"] == "periodic" {
			if _, ok := mode["tags"]; !ok {
				mode["tags"] = map[string]interface{}{}
			}
		}
		if tags, ok := asMap(mode["tags"]); ok {
			if defMode, ok := asMap(d.Defaults["mode"]); ok {
				if defTags, ok := asMap(defMode["tags"]); ok {
					for k, v := range defTags {
						tags[k] = copyValue(v)
					}
				}
			}
			key := d.ComponentTagKey
			if key == "" {
				key = config.DefaultCleanupMatch.ComponentTagKey
			}
			tags[key] = name
		}
	}
	if _, ok := conf["actions"]; !ok {
		conf["actions"] = []interface{}{}
	}
	return AddAlwaysNotify(conf, d.AlwaysNotify), nil
}

// AddAlwaysNotify makes sure conf has a notify action with the configured
// transport that includes every always-notify recipient.
func AddAlwaysNotify(conf Policy, notify *config.AlwaysNotify) Policy {
	if notify == nil {
		return conf
	}
	actions, _ := conf["actions"].([]interface{})
	for _, a := range actions {
		action, ok := asMap(a)
		if !ok || action["type"] != "notify" {
			continue
		}
		transport, _ := asMap(action["transport"])
		if !reflect.DeepEqual(transport, notify.Transport) {
			continue
		}
		to, _ := action["to"].([]interface{})
		for _, addr := range notify.To {
			if !containsValue(to, addr) {
				to = append(to, addr)
			}
		}
		action["to"] = to
		return conf
	}
	to := make([]interface{}, 0, len(notify.To))
	for _, addr := range notify.To {
		to = append(to, addr)
	}
	conf["actions"] = append(actions, map[string]interface{}{
		"type":      "notify",
		"to":        to,
		"transport": copyMap(notify.Transport),
	})
	return conf
}

// merge update into base
func mergeConf(base, update map[string]interface{}, policyName string, path []string) (map[string]interface{}, error) {
	for k, v := range update {
		kpath := append(append([]string{}, path...), k)
		// a non-periodic mode replaces the defaults wholesale
		if len(kpath) == 1 && k == "mode" {
			if mode, ok := asMap(v); ok {
				if t, ok := mode["type"]; ok && t != "periodic" {
					base[k] = v
					continue
				}
			}
		}
		existing, ok := base[k]
		if !ok {
			base[k] = v
			continue
		}
		switch val := v.(type) {
		case []interface{}:
			merged, err := arrayMerge(existing, val, policyName, kpath)
			if err != nil {
				return nil, err
			}
			base[k] = merged
		case map[string]interface{}:
			existingMap, ok := asMap(existing)
			if !ok {
				base[k] = val
				continue
			}
			merged, err := mergeConf(existingMap, val, policyName, kpath)
			if err != nil {
				return nil, err
			}
			base[k] = merged
		default:
			base[k] = v
		}
	}
	// actions only present in the defaults are dropped
	if len(path) == 0 {
		if _, ok := update["actions"]; !ok {
			delete(base, "actions")
		}
	}
	return base, nil
}

// starts with update and adds what the defaults have that update does not
func arrayMerge(base interface{}, update []interface{}, policyName string, path []string) ([]interface{}, error) {
	baseList, ok := base.([]interface{})
	if !ok {
		return nil, MergeError{
			Policy:  policyName,
			Message: fmt.Sprintf("cannot array merge non-array from defaults (%v)", base),
		}
	}
	defDicts := map[string]map[string]interface{}{}
	var defOrder []string
	for _, v := range baseList {
		m, ok := asMap(v)
		if !ok {
			if !containsValue(update, v) {
				update = append(update, copyValue(v))
			}
			continue
		}
		t, ok := m["type"].(string)
		if !ok {
			return nil, MergeError{Policy: policyName, Message: `defaults dict without a "type" key`}
		}
		if _, dup := defDicts[t]; dup {
			return nil, MergeError{Policy: policyName, Message: "defaults specify multiple dicts with type [" + t + "] in the same array"}
		}
		defDicts[t] = m
		defOrder = append(defOrder, t)
	}
	for _, item := range update {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		t, ok := m["type"].(string)
		if !ok {
			continue
		}
		def, ok := defDicts[t]
		if !ok {
			continue
		}
		for k, v := range def {
			if _, exists := m[k]; !exists {
				m[k] = copyValue(v)
			}
		}
		delete(defDicts, t)
	}
	isActions := len(path) == 1 && path[0] == "actions"
	for _, t := range defOrder {
		def, ok := defDicts[t]
		if !ok {
			continue
		}
		// notify actions are never added to policies that lack them
		if isActions && t == "notify" {
			continue
		}
		update = append(update, copyMap(def))
	}
	return update, nil
}

func containsValue(list []interface{}, v interface{}) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

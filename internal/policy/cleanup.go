package policy

import (
	"github.com/outofoffice3/custodian-policygen/internal/config"
)

const (
	CleanupLambdaPolicy = "c7n-cleanup-lambda"
	CleanupCWEPolicy    = "c7n-cleanup-cwe"
)

// CleanupPolicies returns policies that alert on Lambda functions and CloudWatch
// Event rules deployed by custodian that no longer belong to any policy in
// policies. Custodian does not remove the resources of deleted policies itself.
func CleanupPolicies(policies []Policy, notify []string, match config.CleanupMatch, functionPrefix string) []Policy {
	to := make([]interface{}, 0, len(notify))
	for _, addr := range notify {
		to = append(to, addr)
	}
	componentKey := "tag:" + match.ComponentTagKey

	lambdaFilters := []interface{}{
		map[string]interface{}{"tag:" + match.ProjectTagKey: match.ProjectTagValue},
		map[string]interface{}{componentKey: "present"},
		// exclude the cleanup policies themselves
		valueFilter(componentKey, "ne", CleanupLambdaPolicy),
		valueFilter(componentKey, "ne", CleanupCWEPolicy),
	}
	cweFilters := []interface{}{
		valueFilter("Name", "glob", functionPrefix+"*"),
		valueFilter("Name", "ne", functionPrefix+CleanupLambdaPolicy),
		valueFilter("Name", "ne", functionPrefix+CleanupCWEPolicy),
	}
	for _, p := range policies {
		name := p.Name()
		cweFilters = append(cweFilters, valueFilter("Name", "ne", functionPrefix+name))
		lambdaFilters = append(lambdaFilters, valueFilter(componentKey, "ne", name))
	}

	lambdaCleanup := Policy{
		"name":     CleanupLambdaPolicy,
		"comment":  "Find and alert on orphaned c7n Lambda functions",
		"resource": "lambda",
		"actions": []interface{}{
			map[string]interface{}{
				"type":           "notify",
				"violation_desc": "The following cloud-custodian Lambda functions appear to be orphaned",
				"action_desc":    "and should probably be deleted",
				"subject":        "[cloud-custodian {{ account }}] Orphaned cloud-custodian Lambda funcs in {{ region }}",
				"to":             to,
			},
		},
		"filters": lambdaFilters,
	}
	cweCleanup := Policy{
		"name":     CleanupCWEPolicy,
		"comment":  "Find and alert on orphaned c7n CloudWatch Events",
		"resource": "event-rule",
		"actions": []interface{}{
			map[string]interface{}{
				"type":           "notify",
				"violation_desc": "The following cloud-custodian CloudWatch Event rules appear to be orphaned",
				"action_desc":    "and should probably be deleted",
				"subject":        "[cloud-custodian {{ account }}] Orphaned cloud-custodian CW Event rules in {{ region }}",
				"to":             copyValue(to),
			},
		},
		"filters": cweFilters,
	}
	return []Policy{lambdaCleanup, cweCleanup}
}

func valueFilter(key, op, value string) map[string]interface{} {
	return map[string]interface{}{
		"type":  "value",
		"key":   key,
		"op":    op,
		"value": value,
	}
}

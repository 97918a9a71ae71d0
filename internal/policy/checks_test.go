package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPolicies(t *testing.T) {
	assertion := assert.New(t)
	good := mustPolicy(t, `
name: good
resource: ec2
filters:
  - type: marked-for-op
    op: stop
  - "tag:c7n_stop": absent
actions:
  - type: mark-for-op
    tag: c7n_stop
    message: "Instance will be stopped: {op}@{action_date}"
`)
	markedNotFirst := mustPolicy(t, `
name: marked-not-first
resource: ec2
filters:
  - type: value
    key: State
  - or:
      - type: marked-for-op
        op: stop
`)
	noTagFilter := mustPolicy(t, `
name: no-tag-filter
resource: ec2
filters:
  - type: value
actions:
  - type: mark-for-op
    tag: c7n_stop
`)
	badMessage := mustPolicy(t, `
name: bad-message
resource: ec2
actions:
  - type: mark-for-op
    message: "will be stopped soon"
`)
	failures := CheckPolicies([]Policy{good, markedNotFirst, noTagFilter, badMessage, {"name": "bare"}})
	assertion.Equal([]string{"bad-message", "marked-not-first", "no-tag-filter"}, FailedPolicies(failures))
	assertion.Equal([]string{Checks[0].Description}, failures["marked-not-first"])
	assertion.Equal([]string{Checks[1].Description}, failures["no-tag-filter"])
	assertion.Equal([]string{Checks[2].Description}, failures["bad-message"])
}

func TestMarkedForOpFirstNonMapFilter(t *testing.T) {
	assertion := assert.New(t)
	p := Policy{"name": "x", "filters": []interface{}{"scalar", map[string]interface{}{"type": "marked-for-op"}}}
	assertion.False(markedForOpFirst(p))
}

// Package placeholder resolves %%NAME%% tokens in configuration values.
//
// Resolution is plain substring replacement against a fixed environment. A token
// without an environment entry is an error.
package placeholder

import (
	"os"
	"sort"
	"strings"

	"github.com/outofoffice3/custodian-policygen/internal/config"
	"github.com/outofoffice3/custodian-policygen/internal/shared"
)

// Environment maps token names (without delimiters) to their values.
type Environment map[string]string

// Environ returns process variables as KEY=VALUE pairs. Replaced in tests.
var Environ = os.Environ

// UnresolvedError names a token with no value in the environment.
type UnresolvedError struct {
	Token string
	Field string
}

func (e UnresolvedError) Error() string {
	if e.Field == "" {
		return "unresolved placeholder %%" + e.Token + "%%"
	}
	return "unresolved placeholder %%" + e.Token + "%% in field [" + e.Field + "]"
}

// NewEnvironment builds the environment for one (account, region) pair.
//
// The account-level templates are resolved against the region first, so
// %%BUCKET_NAME%% expands to a concrete bucket name.
func NewEnvironment(account *config.AccountConfig, region string) (Environment, error) {
	env := AccountEnvironment(account)
	env[string(shared.TokenAWSRegion)] = region

	derived := []struct {
		token shared.Token
		field string
		value string
	}{
		{shared.TokenBucketName, "output_s3_bucket_name", account.OutputS3BucketName},
		{shared.TokenLogGroup, "custodian_log_group", account.CustodianLogGroup},
		{shared.TokenDLQArn, "dead_letter_queue_arn", account.DeadLetterQueueArn},
		{shared.TokenRoleArn, "role_arn", account.RoleArn},
	}
	for _, d := range derived {
		v, err := env.Resolve(d.field, d.value)
		if err != nil {
			return nil, err
		}
		env[string(d.token)] = v
	}

	// a queue_url of %%MAILER_QUEUE_URL%% refers to the value supplied by the deployment
	if queueURL := account.MailerQueueURL(); queueURL != "" && queueURL != shared.TokenMailerQueueURL.Macro() {
		v, err := env.Resolve("mailer_config.queue_url", queueURL)
		if err != nil {
			return nil, err
		}
		env[string(shared.TokenMailerQueueURL)] = v
	}
	return env, nil
}

// AccountEnvironment is the process environment plus the account's name and id.
func AccountEnvironment(account *config.AccountConfig) Environment {
	env := FromProcess()
	env[string(shared.TokenAccountName)] = account.AccountName
	env[string(shared.TokenAccountID)] = account.AccountID.String()
	return env
}

// FromProcess returns every POLICYGEN_ENV_* process variable, plus MAILER_QUEUE_URL
// when the deployment sets it.
func FromProcess() Environment {
	env := Environment{}
	for _, kv := range Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if strings.HasPrefix(k, shared.PolicygenEnvPrefix) || k == string(shared.TokenMailerQueueURL) {
			env[k] = v
		}
	}
	return env
}

// Resolve replaces every token in value in a single pass, so substituted text
// is never scanned for tokens again. field is only used to report errors.
func (env Environment) Resolve(field, value string) (string, error) {
	for _, token := range shared.FindTokens(value) {
		if _, ok := env[token]; !ok {
			return "", UnresolvedError{Token: token, Field: field}
		}
	}
	return shared.ReplaceTokens(value, func(token string) string {
		return env[token]
	}), nil
}

// Names returns the sorted token names the environment can resolve.
func (env Environment) Names() []string {
	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Expand resolves template once per region. base supplies every token other
// than AWS_REGION.
func Expand(base Environment, field, template string, regions []string) ([]string, error) {
	out := make([]string, 0, len(regions))
	for _, region := range regions {
		env := make(Environment, len(base)+1)
		for k, v := range base {
			env[k] = v
		}
		env[string(shared.TokenAWSRegion)] = region
		v, err := env.Resolve(field, template)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

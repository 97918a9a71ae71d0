package config

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
)

const minimalAccount = `
- account_name: acct
  account_id: "111111111111"
  regions: [us-east-1]
  output_s3_bucket_name: bucket-%%AWS_REGION%%
  custodian_log_group: /c7n/%%AWS_REGION%%
  dead_letter_queue_arn: arn:aws:sqs:us-east-1:111111111111:dlq
  role_arn: arn:aws:iam::111111111111:role/c7n
`

func TestLoad(t *testing.T) {
	assertion := assert.New(t)
	doc, err := Load("testdata/manheim-c7n-tools.yml")
	assertion.NoError(err)
	assertion.Equal([]string{"one-account", "other-account"}, doc.ListAccounts())

	acct, err := doc.Account("one-account")
	assertion.NoError(err)
	assertion.Equal(AccountID("123456789012"), acct.AccountID)
	assertion.Equal([]string{"us-east-1", "us-east-2", "us-west-1", "us-west-2"}, acct.Regions)
	assertion.Equal([]string{"shared", "team", "app"}, acct.PolicySourcePaths)
	assertion.True(acct.CleanupEnabled())
	assertion.Equal("custodian-", acct.FunctionPrefix)

	// anchored values resolve to the outer definitions
	assertion.Equal(acct.RoleArn, acct.MailerConfig.Role)
	assertion.Equal(acct.DeadLetterQueueArn, acct.MailerConfig.DeadLetterConfig.TargetArn)
	assertion.Equal("%%MAILER_QUEUE_URL%%", acct.MailerQueueURL())
	assertion.Equal(2, acct.MailerConfig.SplunkMaxAttempts)
	assertion.Equal(200000, acct.MailerConfig.SplunkHecMaxLength)
	assertion.True(acct.MailerConfig.SplunkActionsList)
	// keys without a dedicated field are kept
	assertion.Contains(acct.MailerConfig.Extra, "templates_folders")

	assertion.NotNil(acct.AlwaysNotify)
	assertion.Equal("sqs", acct.AlwaysNotify.Transport["type"])

	other, err := doc.Account("other-account")
	assertion.NoError(err)
	// leading zero survives
	assertion.Equal("012345678901", other.AccountID.String())
	assertion.False(other.CleanupEnabled())
	assertion.Equal([]string{"all_accounts", "other-account"}, other.PolicySourcePaths)
	assertion.Nil(other.MailerConfig)
	assertion.Equal("", other.MailerQueueURL())

	_, err = doc.Account("missing")
	assertion.ErrorIs(err, ErrAccountNotFound)
}

func TestMissingAccountID(t *testing.T) {
	assertion := assert.New(t)
	doc, err := Parse([]byte(strings.Replace(minimalAccount, `  account_id: "111111111111"`+"\n", "", 1)))
	assertion.Nil(doc)
	var schemaErr SchemaError
	assertion.True(errors.As(err, &schemaErr))
	assertion.Equal("acct", schemaErr.Account)
	assertion.Equal("account_id", schemaErr.Field)
}

func TestDuplicateAccounts(t *testing.T) {
	assertion := assert.New(t)
	_, err := Parse([]byte(minimalAccount + minimalAccount))
	assertion.Error(err)
	assertion.Contains(err.Error(), "duplicate account_name")
	assertion.Contains(err.Error(), "duplicate account_id")
}

func TestEmptyRegions(t *testing.T) {
	assertion := assert.New(t)
	_, err := Parse([]byte(strings.Replace(minimalAccount, "regions: [us-east-1]", "regions: []", 1)))
	var schemaErr SchemaError
	assertion.True(errors.As(err, &schemaErr))
	assertion.Equal("regions", schemaErr.Field)
}

func TestMailerRoleMustMatch(t *testing.T) {
	assertion := assert.New(t)
	doc := minimalAccount + `  mailer_config:
    queue_url: https://sqs.us-east-1.amazonaws.com/111111111111/mailer
    role: arn:aws:iam::111111111111:role/somebody-else
`
	_, err := Parse([]byte(doc))
	assertion.Error(err)
	assertion.Contains(err.Error(), "mailer_config.role")

	// omitted references are filled from the outer fields
	doc = minimalAccount + `  mailer_config:
    queue_url: https://sqs.us-east-1.amazonaws.com/111111111111/mailer
`
	parsed, err := Parse([]byte(doc))
	assertion.NoError(err)
	acct := parsed.Accounts[0]
	assertion.Equal(acct.RoleArn, acct.MailerConfig.Role)
	assertion.Equal(acct.DeadLetterQueueArn, acct.MailerConfig.DeadLetterConfig.TargetArn)
}

func TestMailerRegionsSubset(t *testing.T) {
	assertion := assert.New(t)
	_, err := Parse([]byte(minimalAccount + "  mailer_regions: [eu-west-1]\n"))
	assertion.Error(err)
	assertion.Contains(err.Error(), "mailer_regions[0]")
}

func TestInvalidValues(t *testing.T) {
	assertion := assert.New(t)
	_, err := Parse([]byte(minimalAccount + "  cleanup_notify: [not-an-address]\n"))
	assertion.Error(err)
	assertion.Contains(err.Error(), "cleanup_notify[0]")

	_, err = Parse([]byte(strings.Replace(minimalAccount, "[us-east-1]", "[nowhere]", 1)))
	assertion.Error(err)
	assertion.Contains(err.Error(), "regions[0]")

	_, err = Parse([]byte(strings.Replace(minimalAccount, `"111111111111"`, `"1234"`, 1)))
	assertion.Error(err)
	assertion.Contains(err.Error(), "must be 12 digits")

	_, err = Parse([]byte(""))
	assertion.Error(err)

	_, err = Parse([]byte("account_name: not-a-list"))
	assertion.Error(err)
}

func TestCleanupMatch(t *testing.T) {
	assertion := assert.New(t)
	acct := AccountConfig{}
	assertion.Equal(DefaultCleanupMatch, acct.Cleanup())

	acct.CleanupMatch = &CleanupMatch{ProjectTagValue: "governance"}
	m := acct.Cleanup()
	assertion.Equal("Project", m.ProjectTagKey)
	assertion.Equal("governance", m.ProjectTagValue)
	assertion.Equal("Component", m.ComponentTagKey)
}

type fakeS3 struct {
	body string
	err  error
}

func (f fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestLoadFromS3(t *testing.T) {
	assertion := assert.New(t)
	doc, err := LoadFromS3(context.Background(), fakeS3{body: minimalAccount}, "bucket", "key")
	assertion.NoError(err)
	assertion.Equal([]string{"acct"}, doc.ListAccounts())

	_, err = LoadFromS3(context.Background(), fakeS3{err: errors.New("access denied")}, "bucket", "key")
	assertion.Error(err)
	assertion.Contains(err.Error(), "s3://bucket/key")
}

// Package config loads and validates the per-account settings document consumed by
// the policy generator.
//
// The document is a YAML sequence of account records. Values shared between the top
// level of a record and its mailer_config (role_arn, dead_letter_queue_arn) are written
// once and referenced with YAML anchors; the loader guarantees both occurrences carry
// identical text.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/outofoffice3/custodian-policygen/internal/shared"
	"gopkg.in/yaml.v3"
)

// AccountID is kept as the literal text of the document so leading zeros survive.
type AccountID string

func (a *AccountID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: account_id must be a scalar", node.Line)
	}
	*a = AccountID(node.Value)
	return nil
}

func (a AccountID) String() string {
	return string(a)
}

// Document is every account record, in file order.
type Document struct {
	Accounts []AccountConfig
}

// AccountConfig describes one target cloud account.
type AccountConfig struct {
	AccountName        string        `yaml:"account_name"`
	AccountID          AccountID     `yaml:"account_id"`
	Regions            []string      `yaml:"regions"`
	PolicySourcePaths  []string      `yaml:"policy_source_paths,omitempty"`
	CleanupNotify      []string      `yaml:"cleanup_notify"`
	CleanupMatch       *CleanupMatch `yaml:"cleanup_match,omitempty"`
	OutputS3BucketName string        `yaml:"output_s3_bucket_name"`
	CustodianLogGroup  string        `yaml:"custodian_log_group"`
	DeadLetterQueueArn string        `yaml:"dead_letter_queue_arn"`
	RoleArn            string        `yaml:"role_arn"`
	FunctionPrefix     string        `yaml:"function_prefix,omitempty"`
	MailerRegions      []string      `yaml:"mailer_regions,omitempty"`
	MailerConfig       *MailerConfig `yaml:"mailer_config,omitempty"`
	AlwaysNotify       *AlwaysNotify `yaml:"always_notify,omitempty"`
}

// MailerConfig is an instance of the external mailer's own configuration schema.
// Keys without a dedicated field are carried through untouched in Extra.
type MailerConfig struct {
	QueueURL           string                 `yaml:"queue_url"`
	Role               string                 `yaml:"role,omitempty"`
	DeadLetterConfig   *DeadLetterConfig      `yaml:"dead_letter_config,omitempty"`
	ContactTags        []string               `yaml:"contact_tags,omitempty"`
	FromAddress        string                 `yaml:"from_address,omitempty"`
	SplunkHecURL       string                 `yaml:"splunk_hec_url,omitempty"`
	SplunkHecToken     string                 `yaml:"splunk_hec_token,omitempty"`
	SplunkIndex        string                 `yaml:"splunk_index,omitempty"`
	SplunkActionsList  bool                   `yaml:"splunk_actions_list,omitempty"`
	SplunkMaxAttempts  int                    `yaml:"splunk_max_attempts,omitempty"`
	SplunkHecMaxLength int                    `yaml:"splunk_hec_max_length,omitempty"`
	SplunkRemovePaths  []string               `yaml:"splunk_remove_paths,omitempty"`
	Extra              map[string]interface{} `yaml:",inline"`
}

type DeadLetterConfig struct {
	TargetArn string `yaml:"TargetArn"`
}

// AlwaysNotify is a notify target added to every generated policy.
type AlwaysNotify struct {
	To        []string               `yaml:"to"`
	Transport map[string]interface{} `yaml:"transport"`
}

// CleanupMatch identifies the functions this tool deployed, for orphan detection.
type CleanupMatch struct {
	ProjectTagKey   string `yaml:"project_tag_key"`
	ProjectTagValue string `yaml:"project_tag_value"`
	ComponentTagKey string `yaml:"component_tag_key"`
}

var DefaultCleanupMatch = CleanupMatch{
	ProjectTagKey:   "Project",
	ProjectTagValue: "cloud-custodian",
	ComponentTagKey: "Component",
}

// S3GetObjectAPI is the part of the S3 client used to fetch the document.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Load reads and validates the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return Parse(data)
}

// LoadFromS3 fetches and validates the document stored at bucket/key.
func LoadFromS3(ctx context.Context, client S3GetObjectAPI, bucket, key string) (*Document, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return Parse(data)
}

// Parse decodes the document, links shared values and validates it.
func Parse(data []byte) (*Document, error) {
	var accounts []AccountConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&accounts); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config document is empty")
		}
		return nil, fmt.Errorf("decode config document: %w", err)
	}
	doc := &Document{Accounts: accounts}
	for i := range doc.Accounts {
		doc.Accounts[i].applyDefaults()
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// fill the nested references from the outer fields when the document leaves them out
func (a *AccountConfig) applyDefaults() {
	if len(a.PolicySourcePaths) == 0 && a.AccountName != "" {
		a.PolicySourcePaths = []string{shared.AllAccountsDir, a.AccountName}
	}
	if a.FunctionPrefix == "" {
		a.FunctionPrefix = shared.DefaultFunctionPrefix
	}
	if a.CleanupNotify == nil {
		a.CleanupNotify = []string{}
	}
	if m := a.MailerConfig; m != nil {
		if m.Role == "" {
			m.Role = a.RoleArn
		}
		if m.DeadLetterConfig == nil {
			m.DeadLetterConfig = &DeadLetterConfig{}
		}
		if m.DeadLetterConfig.TargetArn == "" {
			m.DeadLetterConfig.TargetArn = a.DeadLetterQueueArn
		}
	}
}

// ListAccounts returns every account_name in document order.
func (d *Document) ListAccounts() []string {
	names := make([]string, 0, len(d.Accounts))
	for _, a := range d.Accounts {
		names = append(names, a.AccountName)
	}
	return names
}

// Account returns the record named name.
func (d *Document) Account(name string) (*AccountConfig, error) {
	for i := range d.Accounts {
		if d.Accounts[i].AccountName == name {
			return &d.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
}

// CleanupEnabled reports whether orphan cleanup policies are generated for the account.
func (a *AccountConfig) CleanupEnabled() bool {
	return len(a.CleanupNotify) > 0
}

// Cleanup returns the configured cleanup match rule, or the default one.
func (a *AccountConfig) Cleanup() CleanupMatch {
	if a.CleanupMatch == nil {
		return DefaultCleanupMatch
	}
	m := *a.CleanupMatch
	if m.ProjectTagKey == "" {
		m.ProjectTagKey = DefaultCleanupMatch.ProjectTagKey
	}
	if m.ProjectTagValue == "" {
		m.ProjectTagValue = DefaultCleanupMatch.ProjectTagValue
	}
	if m.ComponentTagKey == "" {
		m.ComponentTagKey = DefaultCleanupMatch.ComponentTagKey
	}
	return m
}

// MailerQueueURL returns the mailer queue url, empty when no mailer is configured.
func (a *AccountConfig) MailerQueueURL() string {
	if a.MailerConfig == nil {
		return ""
	}
	return a.MailerConfig.QueueURL
}

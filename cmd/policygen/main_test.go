package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/outofoffice3/custodian-policygen/internal/awsclientmgr"
	"github.com/outofoffice3/custodian-policygen/internal/preflight"
	"github.com/stretchr/testify/assert"
)

const testConfig = `
- account_name: acct1
  account_id: "111111111111"
  regions:
    - us-east-1
    - us-east-2
  output_s3_bucket_name: c7n-111111111111-%%AWS_REGION%%
  custodian_log_group: /cloud-custodian/%%AWS_REGION%%
  dead_letter_queue_arn: arn:aws:sqs:us-east-1:111111111111:dlq
  role_arn: arn:aws:iam::111111111111:role/c7n
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixture(t *testing.T) (string, string, string) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "manheim-c7n-tools.yml")
	writeFile(t, configPath, testConfig)
	policiesDir := filepath.Join(dir, "policies")
	writeFile(t, filepath.Join(policiesDir, "defaults.yml"), "mode:\n  type: periodic\n")
	writeFile(t, filepath.Join(policiesDir, "all_accounts", "common", "ebs-unattached.yml"), "name: ebs-unattached\nresource: ebs\n")
	outputDir := filepath.Join(dir, "out")
	if err := os.Mkdir(outputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return configPath, policiesDir, outputDir
}

type fakeS3 struct {
	keys []string
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	io.Copy(io.Discard, params.Body)
	f.keys = append(f.keys, aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, errors.New("not implemented")
}

type fakeSTS struct {
	account string
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

type fakeIAM struct{}

func (f *fakeIAM) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	return &iam.GetRoleOutput{}, nil
}

func withFakeAWS(t *testing.T, callerAccount string) *fakeS3 {
	t.Helper()
	client := &fakeS3{}
	orig := newAWSClientMgr
	newAWSClientMgr = func(ctx context.Context, regions []string, assumeRoleArn string) (awsclientmgr.AWSClientMgr, error) {
		awscm := awsclientmgr.NewAWSClientMgr(regions[0])
		for _, region := range regions {
			awscm.SetSDKClient(region, awsclientmgr.S3, client)
		}
		awscm.SetSDKClient(regions[0], awsclientmgr.STS, &fakeSTS{account: callerAccount})
		awscm.SetSDKClient(regions[0], awsclientmgr.IAM, &fakeIAM{})
		return awscm, nil
	}
	t.Cleanup(func() { newAWSClientMgr = orig })
	return client
}

func TestRun(t *testing.T) {
	assertion := assert.New(t)
	configPath, policiesDir, outputDir := fixture(t)
	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-c", configPath, "--policies-dir", policiesDir, "--output-dir", outputDir, "acct1"}, &stdout)
	assertion.NoError(err)
	assertion.Equal([]string{
		filepath.Join(outputDir, "custodian_us-east-1.yml"),
		filepath.Join(outputDir, "custodian_us-east-2.yml"),
		filepath.Join(outputDir, "policies.rst"),
		filepath.Join(outputDir, "regions.rst"),
	}, strings.Fields(stdout.String()))
}

func TestRunUploadAndVerify(t *testing.T) {
	assertion := assert.New(t)
	client := withFakeAWS(t, "111111111111")
	configPath, policiesDir, outputDir := fixture(t)
	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"--config", configPath, "--policies-dir", policiesDir, "--output-dir", outputDir,
		"--upload", "--upload-prefix", "c7n", "--verify", "acct1",
	}, &stdout)
	assertion.NoError(err)
	assertion.ElementsMatch([]string{
		"c7n-111111111111-us-east-1/c7n/custodian_us-east-1.yml",
		"c7n-111111111111-us-east-2/c7n/custodian_us-east-2.yml",
	}, client.keys)
	assertion.Contains(stdout.String(), "s3://c7n-111111111111-us-east-2/c7n/custodian_us-east-2.yml")
}

func TestRunVerifyWrongAccount(t *testing.T) {
	assertion := assert.New(t)
	client := withFakeAWS(t, "222222222222")
	configPath, policiesDir, outputDir := fixture(t)
	err := run(context.Background(), []string{"-c", configPath, "--policies-dir", policiesDir, "--output-dir", outputDir, "--verify", "acct1"}, io.Discard)
	var mismatch preflight.AccountMismatchError
	assertion.ErrorAs(err, &mismatch)
	assertion.Empty(client.keys)
	_, statErr := os.Stat(filepath.Join(outputDir, "custodian_us-east-1.yml"))
	assertion.True(os.IsNotExist(statErr))
}

func TestRunArguments(t *testing.T) {
	assertion := assert.New(t)
	configPath, _, _ := fixture(t)

	var stdout bytes.Buffer
	assertion.NoError(run(context.Background(), []string{"--version"}, &stdout))
	assertion.Equal("policygen "+version+"\n", stdout.String())

	stdout.Reset()
	assertion.NoError(run(context.Background(), []string{"-h"}, &stdout))
	assertion.Contains(stdout.String(), "Usage: policygen [flags] ACCT_NAME")

	assertion.Error(run(context.Background(), []string{"-c", configPath}, io.Discard))
	assertion.Error(run(context.Background(), []string{"-c", configPath, "a", "b"}, io.Discard))
	assertion.Error(run(context.Background(), []string{"--bogus"}, io.Discard))
	assertion.Error(run(context.Background(), []string{"-c", filepath.Join(t.TempDir(), "missing.yml"), "acct1"}, io.Discard))
	assertion.Error(run(context.Background(), []string{"-c", configPath, "other"}, io.Discard))
}

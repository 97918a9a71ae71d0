// Package preflight confirms the AWS credentials match the account record before
// any config is generated or published.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/jzelinskie/stringz"
	"github.com/outofoffice3/custodian-policygen/internal/awsclientmgr"
)

// AccountMismatchError means the credentials belong to another account.
type AccountMismatchError struct {
	Expected string
	Actual   string
}

func (e AccountMismatchError) Error() string {
	return fmt.Sprintf("credentials are for account [%s], config expects [%s]", e.Actual, e.Expected)
}

// VerifyAccount checks the caller identity belongs to accountId.
func VerifyAccount(ctx context.Context, client awsclientmgr.STSAPI, accountId string) error {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("get caller identity: %w", err)
	}
	actual := aws.ToString(out.Account)
	if actual != accountId {
		return AccountMismatchError{Expected: accountId, Actual: actual}
	}
	return nil
}

// VerifyRole checks the role named by roleArn exists.
func VerifyRole(ctx context.Context, client awsclientmgr.IAMAPI, roleArn string) error {
	name, err := RoleName(roleArn)
	if err != nil {
		return err
	}
	if _, err := client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)}); err != nil {
		return fmt.Errorf("get role [%s]: %w", name, err)
	}
	return nil
}

// RoleName returns the role name of an IAM role arn, without its path.
func RoleName(roleArn string) (string, error) {
	_, resource, ok := strings.Cut(roleArn, ":role/")
	if !ok || resource == "" {
		return "", errors.New("not an iam role arn [" + roleArn + "]")
	}
	parts := strings.Split(resource, "/")
	return parts[len(parts)-1], nil
}

// Run verifies the account and the role using the clients held by awscm.
func Run(ctx context.Context, awscm awsclientmgr.AWSClientMgr, accountId, roleArn string) error {
	home := awscm.GetHomeRegion()
	stsClient, ok := awscm.GetSDKClient(home, awsclientmgr.STS)
	if !ok {
		return errors.New("no sts client for region [" + home + "]")
	}
	if err := VerifyAccount(ctx, stsClient.(awsclientmgr.STSAPI), accountId); err != nil {
		return err
	}
	iamClient, ok := awscm.GetSDKClient(home, awsclientmgr.IAM)
	if !ok {
		return errors.New("no iam client for region [" + home + "]")
	}
	return VerifyRole(ctx, iamClient.(awsclientmgr.IAMAPI), roleArn)
}

// CheckRegions makes sure awscm holds an s3 client for every region configs are uploaded to.
func CheckRegions(awscm awsclientmgr.AWSClientMgr, regions []string) error {
	available := awscm.GetRegions()
	var missing []string
	for _, region := range regions {
		if !stringz.SliceContains(available, region) {
			missing = append(missing, region)
		}
	}
	if len(missing) > 0 {
		return errors.New("no s3 client for regions [" + strings.Join(missing, " ") + "]")
	}
	return nil
}

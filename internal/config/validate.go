package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jzelinskie/stringz"
	"github.com/outofoffice3/custodian-policygen/internal/shared"
)

// Validate checks every record and returns all schema errors joined together.
func (d *Document) Validate() error {
	if len(d.Accounts) == 0 {
		return SchemaError{Message: "document contains no accounts"}
	}
	var errs []error
	names := map[string]int{}
	ids := map[AccountID]int{}
	for i := range d.Accounts {
		a := &d.Accounts[i]
		label := stringz.DefaultEmpty(a.AccountName, "#"+strconv.Itoa(i))
		errs = append(errs, a.validate(label)...)
		if a.AccountName != "" {
			if prev, ok := names[a.AccountName]; ok {
				errs = append(errs, SchemaError{Account: label, Field: "account_name",
					Message: fmt.Sprintf("duplicate account_name (also record #%d)", prev)})
			}
			names[a.AccountName] = i
		}
		if a.AccountID != "" {
			if prev, ok := ids[a.AccountID]; ok {
				errs = append(errs, SchemaError{Account: label, Field: "account_id",
					Message: fmt.Sprintf("duplicate account_id %s (also record #%d)", a.AccountID, prev)})
			}
			ids[a.AccountID] = i
		}
	}
	return errors.Join(errs...)
}

func (a *AccountConfig) validate(label string) []error {
	var errs []error
	fail := func(field, msg string) {
		errs = append(errs, SchemaError{Account: label, Field: field, Message: msg})
	}

	required := map[string]string{
		"account_name":          a.AccountName,
		"account_id":            string(a.AccountID),
		"output_s3_bucket_name": a.OutputS3BucketName,
		"custodian_log_group":   a.CustodianLogGroup,
		"dead_letter_queue_arn": a.DeadLetterQueueArn,
		"role_arn":              a.RoleArn,
	}
	for _, field := range []string{"account_name", "account_id", "output_s3_bucket_name",
		"custodian_log_group", "dead_letter_queue_arn", "role_arn"} {
		if required[field] == "" {
			fail(field, "required field is missing")
		}
	}
	if a.AccountID != "" && !shared.IsValidAccountID(string(a.AccountID)) {
		fail("account_id", "must be 12 digits, got ["+string(a.AccountID)+"]")
	}

	if len(a.Regions) == 0 {
		fail("regions", "at least one region is required")
	}
	for i, r := range a.Regions {
		if !shared.IsValidRegion(r) {
			fail(fmt.Sprintf("regions[%d]", i), "invalid region ["+r+"]")
		}
	}
	if len(stringz.Dedup(a.Regions)) != len(a.Regions) {
		fail("regions", "regions must not repeat")
	}
	if len(a.PolicySourcePaths) == 0 {
		fail("policy_source_paths", "at least one policy source path is required")
	}
	for i, p := range a.PolicySourcePaths {
		if p == "" {
			fail(fmt.Sprintf("policy_source_paths[%d]", i), "empty path")
		}
	}
	for i, addr := range a.CleanupNotify {
		if !shared.IsValidEmail(addr) {
			fail(fmt.Sprintf("cleanup_notify[%d]", i), "invalid email address ["+addr+"]")
		}
	}
	if a.RoleArn != "" && !shared.IsValidArn(a.RoleArn) {
		fail("role_arn", "invalid arn ["+a.RoleArn+"]")
	}
	if a.DeadLetterQueueArn != "" && !shared.IsValidArn(a.DeadLetterQueueArn) {
		fail("dead_letter_queue_arn", "invalid arn ["+a.DeadLetterQueueArn+"]")
	}
	for i, r := range a.MailerRegions {
		if !stringz.SliceContains(a.Regions, r) {
			fail(fmt.Sprintf("mailer_regions[%d]", i), "region ["+r+"] is not listed in regions")
		}
	}

	if m := a.MailerConfig; m != nil {
		if m.QueueURL == "" {
			fail("mailer_config.queue_url", "required field is missing")
		}
		if m.Role != a.RoleArn {
			fail("mailer_config.role", "must reference role_arn ["+a.RoleArn+"], got ["+m.Role+"]")
		}
		if m.DeadLetterConfig != nil && m.DeadLetterConfig.TargetArn != a.DeadLetterQueueArn {
			fail("mailer_config.dead_letter_config.TargetArn",
				"must reference dead_letter_queue_arn ["+a.DeadLetterQueueArn+"], got ["+m.DeadLetterConfig.TargetArn+"]")
		}
		if m.SplunkMaxAttempts < 0 {
			fail("mailer_config.splunk_max_attempts", "must not be negative")
		}
		if m.SplunkHecMaxLength < 0 {
			fail("mailer_config.splunk_hec_max_length", "must not be negative")
		}
	}

	if n := a.AlwaysNotify; n != nil {
		if len(n.To) == 0 {
			fail("always_notify.to", "at least one recipient is required")
		}
		if len(n.Transport) == 0 {
			fail("always_notify.transport", "transport is required")
		}
	}
	return errs
}

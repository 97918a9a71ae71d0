// policygen generates the per-region cloud-custodian configs of one account
// from a layered policies directory.
//
// Usage: policygen [flags] ACCT_NAME
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/outofoffice3/common/logger"
	"github.com/outofoffice3/custodian-policygen/internal/awsclientmgr"
	"github.com/outofoffice3/custodian-policygen/internal/config"
	"github.com/outofoffice3/custodian-policygen/internal/placeholder"
	"github.com/outofoffice3/custodian-policygen/internal/policygen"
	"github.com/outofoffice3/custodian-policygen/internal/preflight"
	"github.com/outofoffice3/custodian-policygen/internal/shared"
	"github.com/outofoffice3/custodian-policygen/internal/writer"
	"github.com/spf13/pflag"
)

const version = "0.1.0"

// newAWSClientMgr builds the clients used by --upload and --verify.
var newAWSClientMgr = func(ctx context.Context, regions []string, assumeRoleArn string) (awsclientmgr.AWSClientMgr, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sdk config: %w", err)
	}
	return awsclientmgr.Init(awsclientmgr.AWSClientMgrInitConfig{
		Cfg:           cfg,
		Regions:       regions,
		AssumeRoleArn: assumeRoleArn,
	})
}

type options struct {
	configPath   string
	policiesDir  string
	outputDir    string
	upload       bool
	uploadPrefix string
	verify       bool
	assumeRole   string
	showVersion  bool
	help         bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("policygen", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVarP(&opts.configPath, "config", "c", shared.DefaultConfigFile, "path to the account config document")
	flagSet.StringVar(&opts.policiesDir, "policies-dir", shared.PoliciesDir, "directory holding defaults.yml and the policy source paths")
	flagSet.StringVar(&opts.outputDir, "output-dir", ".", "directory the generated files are written to")
	flagSet.BoolVar(&opts.upload, "upload", false, "upload each custodian_<region>.yml to the region's output bucket")
	flagSet.StringVar(&opts.uploadPrefix, "upload-prefix", "", "object key prefix for uploaded configs")
	flagSet.BoolVar(&opts.verify, "verify", false, "check the AWS credentials belong to the account and role_arn exists")
	flagSet.StringVar(&opts.assumeRole, "assume-role", "", "role arn to assume for AWS calls")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print the version and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.help {
		printHelp(stdout, flagSet)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "policygen %s\n", version)
		return nil
	}
	if flagSet.NArg() != 1 {
		printHelp(stdout, flagSet)
		return errors.New("exactly one ACCT_NAME argument is required")
	}

	log := logger.NewConsoleLogger(logger.LogLevelDebug)
	doc, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	account, err := doc.Account(flagSet.Arg(0))
	if err != nil {
		return err
	}

	var awscm awsclientmgr.AWSClientMgr
	if opts.upload || opts.verify {
		awscm, err = newAWSClientMgr(ctx, account.Regions, opts.assumeRole)
		if err != nil {
			return err
		}
	}
	if opts.upload {
		if err := preflight.CheckRegions(awscm, account.Regions); err != nil {
			return err
		}
	}
	if opts.verify {
		env, err := placeholder.NewEnvironment(account, awscm.GetHomeRegion())
		if err != nil {
			return err
		}
		if err := preflight.Run(ctx, awscm, account.AccountID.String(), env[string(shared.TokenRoleArn)]); err != nil {
			return err
		}
		log.Infof("credentials verified for account [%s]", account.AccountID)
	}

	w, err := writer.Init(writer.WriterInitConfig{AWSClientMgr: awscm, OutputDir: opts.outputDir})
	if err != nil {
		return err
	}
	generator, err := policygen.Init(policygen.GeneratorInitConfig{
		Logger:       log,
		Document:     doc,
		AccountName:  account.AccountName,
		PoliciesDir:  opts.policiesDir,
		Writer:       w,
		Upload:       opts.upload,
		UploadPrefix: opts.uploadPrefix,
	})
	if err != nil {
		return err
	}
	result, err := generator.Run(ctx)
	if err != nil {
		return err
	}
	for _, file := range result.Files {
		fmt.Fprintln(stdout, file)
	}
	for _, upload := range result.Uploads {
		fmt.Fprintln(stdout, upload)
	}
	return nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Generate per-region cloud-custodian configs for one account.

Usage: policygen [flags] ACCT_NAME

Flags:
%s`, flagSet.FlagUsages())
}

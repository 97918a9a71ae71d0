package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/outofoffice3/common/logger"
	"github.com/outofoffice3/custodian-policygen/handle"
	"github.com/outofoffice3/custodian-policygen/internal/awsclientmgr"
	"github.com/outofoffice3/custodian-policygen/internal/config"
)

var (
	settings handle.Settings
	document *config.Document
	awscm    awsclientmgr.AWSClientMgr
	sos      logger.Logger
)

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	sos.Debugf("cloudwatch event [%+v]", event)
	_, err := handle.HandleScheduledEvent(ctx, event, settings, document, awscm, sos)
	return err
}

func main() {
	lambda.Start(handler)
}

func init() {
	sos = logger.NewConsoleLogger(logger.LogLevelDebug)
	sos.Infof("main init started")

	var err error
	settings, err = handle.LoadSettings()
	if err != nil {
		sos.Errorf("failed to read settings, %v", err)
		panic("env vars not set")
	}
	sos.Debugf("config bucket name : [%s]", settings.ConfigBucket)
	sos.Debugf("config object key : [%s]", settings.ConfigKey)
	sos.Debugf("account name : [%s]", settings.AccountName)

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		sos.Errorf("failed to load SDK config, %v", err)
		panic("failed to load sdk config")
	}
	sos.Infof("SDK config loaded for region [%s]", cfg.Region)

	// retrieve config document from s3
	document, err = config.LoadFromS3(context.Background(), s3.NewFromConfig(cfg), settings.ConfigBucket, settings.ConfigKey)
	if err != nil {
		sos.Errorf("failed to load config document, %v", err)
		panic("failed to load config document")
	}
	account, err := document.Account(settings.AccountName)
	if err != nil {
		sos.Errorf("%v", err)
		panic("account not in config document")
	}
	sos.Infof("config document parsed, account [%s] has %d regions", account.AccountName, len(account.Regions))

	awscm, err = awsclientmgr.Init(awsclientmgr.AWSClientMgrInitConfig{
		Cfg:     cfg,
		Regions: account.Regions,
	})
	if err != nil {
		sos.Errorf("failed to init aws clients, %v", err)
		panic("failed to init aws clients")
	}
}

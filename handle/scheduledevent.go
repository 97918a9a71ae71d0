package handle

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/caarlos0/env/v11"
	"github.com/outofoffice3/common/logger"
	"github.com/outofoffice3/custodian-policygen/internal/awsclientmgr"
	"github.com/outofoffice3/custodian-policygen/internal/config"
	"github.com/outofoffice3/custodian-policygen/internal/placeholder"
	"github.com/outofoffice3/custodian-policygen/internal/policygen"
	"github.com/outofoffice3/custodian-policygen/internal/preflight"
	"github.com/outofoffice3/custodian-policygen/internal/shared"
	"github.com/outofoffice3/custodian-policygen/internal/writer"
)

// Settings are read from the lambda environment.
type Settings struct {
	ConfigBucket  string `env:"CONFIG_FILE_BUCKET_NAME,required"`
	ConfigKey     string `env:"CONFIG_FILE_KEY,required"`
	AccountName   string `env:"ACCOUNT_NAME,required"`
	PoliciesDir   string `env:"POLICIES_DIR" envDefault:"policies"`
	OutputDir     string `env:"OUTPUT_DIR" envDefault:"/tmp"`
	UploadPrefix  string `env:"UPLOAD_PREFIX"`
	VerifyAccount bool   `env:"VERIFY_ACCOUNT" envDefault:"true"`
}

func LoadSettings() (Settings, error) {
	var settings Settings
	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return settings, nil
}

// HandleScheduledEvent generates the custodian config of every region of the
// configured account and uploads each one to its region's output bucket.
func HandleScheduledEvent(ctx context.Context, event events.CloudWatchEvent, settings Settings, doc *config.Document, awscm awsclientmgr.AWSClientMgr, log logger.Logger) (policygen.Result, error) {
	log.Debugf("event [%s] from [%s] at [%s]", event.DetailType, event.Source, event.Time)
	account, err := doc.Account(settings.AccountName)
	if err != nil {
		return policygen.Result{}, err
	}

	if settings.VerifyAccount {
		macros, err := placeholder.NewEnvironment(account, awscm.GetHomeRegion())
		if err != nil {
			return policygen.Result{}, err
		}
		roleArn := macros[string(shared.TokenRoleArn)]
		if err := preflight.Run(ctx, awscm, account.AccountID.String(), roleArn); err != nil {
			return policygen.Result{}, fmt.Errorf("preflight: %w", err)
		}
		log.Infof("credentials verified for account [%s], role [%s]", account.AccountID, roleArn)
	}

	if err := preflight.CheckRegions(awscm, account.Regions); err != nil {
		return policygen.Result{}, err
	}
	w, err := writer.Init(writer.WriterInitConfig{
		AWSClientMgr: awscm,
		OutputDir:    settings.OutputDir,
	})
	if err != nil {
		return policygen.Result{}, err
	}
	generator, err := policygen.Init(policygen.GeneratorInitConfig{
		Logger:       log,
		Document:     doc,
		AccountName:  account.AccountName,
		PoliciesDir:  settings.PoliciesDir,
		Writer:       w,
		Upload:       true,
		UploadPrefix: settings.UploadPrefix,
	})
	if err != nil {
		return policygen.Result{}, err
	}
	result, err := generator.Run(ctx)
	if err != nil {
		return result, err
	}
	log.Infof("wrote %d files, uploaded %d configs", len(result.Files), len(result.Uploads))
	return result, nil
}

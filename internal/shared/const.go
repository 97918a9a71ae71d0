package shared

const (
	EnvBucketName    EnvVar = "CONFIG_FILE_BUCKET_NAME"
	EnvConfigFileKey EnvVar = "CONFIG_FILE_KEY"
	EnvAccountName   EnvVar = "ACCOUNT_NAME"
	EnvPoliciesDir   EnvVar = "POLICIES_DIR"
	EnvOutputDir     EnvVar = "OUTPUT_DIR"
	EnvUploadPrefix  EnvVar = "UPLOAD_PREFIX"
	EnvVerify        EnvVar = "VERIFY_ACCOUNT"

	// build metadata used in policies.rst
	EnvJobName     EnvVar = "JOB_NAME"
	EnvBuildNumber EnvVar = "BUILD_NUMBER"
	EnvBuildURL    EnvVar = "BUILD_URL"
	EnvGitCommit   EnvVar = "GIT_COMMIT"
	EnvGitHTMLURL  EnvVar = "GIT_HTML_URL"

	// process variables with this prefix become %%NAME%% placeholders
	PolicygenEnvPrefix string = "POLICYGEN_ENV_"

	DefaultConfigFile     string = "manheim-c7n-tools.yml"
	DefaultFunctionPrefix string = "custodian-"
	PoliciesDir           string = "policies"
	DefaultsFile          string = "defaults.yml"
	CommonDir             string = "common"
	AllAccountsDir        string = "all_accounts"
	PoliciesRstFile       string = "policies.rst"
	RegionsRstFile        string = "regions.rst"
)

const (
	TokenBucketName     Token = "BUCKET_NAME"
	TokenLogGroup       Token = "LOG_GROUP"
	TokenDLQArn         Token = "DLQ_ARN"
	TokenRoleArn        Token = "ROLE_ARN"
	TokenMailerQueueURL Token = "MAILER_QUEUE_URL"
	TokenAccountName    Token = "ACCOUNT_NAME"
	TokenAccountID      Token = "ACCOUNT_ID"
	TokenAWSRegion      Token = "AWS_REGION"
)

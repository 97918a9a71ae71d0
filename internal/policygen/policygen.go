// Package policygen turns layered policy directories and an account record into
// per-region custodian configs.
package policygen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/outofoffice3/common/logger"
	"github.com/outofoffice3/custodian-policygen/internal/config"
	"github.com/outofoffice3/custodian-policygen/internal/errormgr"
	"github.com/outofoffice3/custodian-policygen/internal/metricmgr"
	"github.com/outofoffice3/custodian-policygen/internal/placeholder"
	"github.com/outofoffice3/custodian-policygen/internal/policy"
	"github.com/outofoffice3/custodian-policygen/internal/shared"
	"github.com/outofoffice3/custodian-policygen/internal/writer"
	"gopkg.in/yaml.v3"
)

// Now is the clock used for the policies.rst timestamp.
var Now = time.Now

type Generator interface {
	// generate configs for every region of the account, then the rst docs
	Run(ctx context.Context) (Result, error)
	// get account being generated
	GetAccount() *config.AccountConfig
	// get metric mgr
	GetMetricMgr() metricmgr.MetricMgr
	// get error mgr
	GetErrorMgr() errormgr.ErrorMgr
	// get logger
	GetLogger() logger.Logger
}

// Result lists what a run produced.
type Result struct {
	// local paths of every written file
	Files []string
	// s3://bucket/key of every uploaded config
	Uploads []string
	// final policies per region, placeholders resolved
	Policies map[string][]policy.Policy
}

type _Generator struct {
	logger       logger.Logger
	document     *config.Document
	account      *config.AccountConfig
	policiesDir  string
	writer       writer.Writer
	upload       bool
	uploadPrefix string
	buildInfo    BuildInfo
	metricMgr    metricmgr.MetricMgr
	errorMgr     errormgr.ErrorMgr
}

type GeneratorInitConfig struct {
	Logger      logger.Logger
	Document    *config.Document
	AccountName string
	// directory holding defaults.yml and the policy source paths
	PoliciesDir string
	Writer      writer.Writer
	// publish each custodian_<region>.yml to the region's output bucket
	Upload       bool
	UploadPrefix string
	BuildInfo    *BuildInfo
}

func Init(cfg GeneratorInitConfig) (Generator, error) {
	if cfg.Document == nil {
		return nil, errors.New("config document is not set")
	}
	if cfg.Writer == nil {
		return nil, errors.New("writer is not set")
	}
	account, err := cfg.Document.Account(cfg.AccountName)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewConsoleLogger(logger.LogLevelDebug)
	}
	policiesDir := cfg.PoliciesDir
	if policiesDir == "" {
		policiesDir = shared.PoliciesDir
	}
	buildInfo := BuildInfoFromEnv()
	if cfg.BuildInfo != nil {
		buildInfo = *cfg.BuildInfo
	}
	log.Infof("initialized policygen for account: %s (%s), output dir [%s]", account.AccountName, account.AccountID, cfg.Writer.GetOutputDir())
	return &_Generator{
		logger:       log,
		document:     cfg.Document,
		account:      account,
		policiesDir:  policiesDir,
		writer:       cfg.Writer,
		upload:       cfg.Upload,
		uploadPrefix: cfg.UploadPrefix,
		buildInfo:    buildInfo,
		metricMgr:    metricmgr.Init(),
		errorMgr:     errormgr.NewErrorMgr(),
	}, nil
}

func (g *_Generator) Run(ctx context.Context) (Result, error) {
	result := Result{Policies: map[string][]policy.Policy{}}
	defaults, err := policy.ReadFile(filepath.Join(g.policiesDir, shared.DefaultsFile))
	if err != nil {
		return result, fmt.Errorf("read defaults: %w", err)
	}
	if g.upload {
		buckets, err := placeholder.Expand(placeholder.AccountEnvironment(g.account),
			"output_s3_bucket_name", g.account.OutputS3BucketName, g.account.Regions)
		if err != nil {
			return result, fmt.Errorf("resolve output buckets: %w", err)
		}
		g.logger.Infof("configs will be uploaded to buckets %v", buckets)
	}

	// layered policies for every account, needed for policies.rst
	accountPolicies := map[string]map[string]policy.Set{}
	for i := range g.document.Accounts {
		a := &g.document.Accounts[i]
		sets, err := policy.ReadSourcePaths(g.policiesDir, a.PolicySourcePaths, a.Regions)
		if err != nil {
			return result, fmt.Errorf("read policies for account [%s]: %w", a.AccountName, err)
		}
		accountPolicies[a.AccountName] = sets
	}
	current := accountPolicies[g.account.AccountName]

	errorChan := make(chan error, len(g.account.Regions))
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		g.errorMgr.ListenForErrors(errorChan)
	}()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, region := range g.account.Regions {
		wg.Add(1)
		go func(region string) {
			defer wg.Done()
			out, err := g.generateRegion(ctx, region, current[region], defaults, errorChan)
			if err != nil {
				g.metricMgr.IncrementMetric(metricmgr.TotalFailedRegions, 1)
				errorChan <- fmt.Errorf("region [%s]: %w", region, err)
				return
			}
			if out == nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			result.Policies[region] = out.policies
			result.Files = append(result.Files, out.file)
			if out.upload != "" {
				result.Uploads = append(result.Uploads, out.upload)
			}
		}(region)
	}
	wg.Wait()
	close(errorChan)
	<-listenerDone

	if g.errorMgr.HasErrors() {
		return result, g.reportErrors()
	}
	g.logger.Infof("OK: all policies passed sanity/safety checks")

	g.logger.Infof("writing policy descriptions to %s", shared.PoliciesRstFile)
	rst := PoliciesRst(g.document, accountPolicies, g.buildInfo, Now().UTC())
	file, err := g.writeFile(shared.PoliciesRstFile, []byte(rst))
	if err != nil {
		return result, err
	}
	result.Files = append(result.Files, file)

	g.logger.Infof("writing region list to %s", shared.RegionsRstFile)
	file, err = g.writeFile(shared.RegionsRstFile, []byte(RegionsRst(g.document)))
	if err != nil {
		return result, err
	}
	result.Files = append(result.Files, file)

	sort.Strings(result.Files)
	sort.Strings(result.Uploads)
	g.logMetrics()
	return result, nil
}

type regionOutput struct {
	policies []policy.Policy
	file     string
	upload   string
}

// generateRegion applies defaults, adds cleanup policies, checks and writes one
// region's config. Check failures go to errorChan and produce a nil output.
func (g *_Generator) generateRegion(ctx context.Context, region string, policies policy.Set, defaults policy.Policy, errorChan chan<- error) (*regionOutput, error) {
	g.metricMgr.IncrementMetric(metricmgr.TotalRegions, 1)
	g.metricMgr.IncrementMetric(metricmgr.TotalPoliciesRead, int32(len(policies)))
	defaulter := policy.Defaulter{
		Defaults:        defaults,
		AlwaysNotify:    g.account.AlwaysNotify,
		ComponentTagKey: g.account.Cleanup().ComponentTagKey,
	}

	final := make([]policy.Policy, 0, len(policies)+2)
	for _, p := range policies.Sorted() {
		conf, err := defaulter.Apply(p)
		if err != nil {
			return nil, err
		}
		final = append(final, conf)
	}
	if g.account.CleanupEnabled() {
		g.logger.Infof("generating c7n cleanup policies for %s", region)
		cleanup := policy.CleanupPolicies(final, g.account.CleanupNotify, g.account.Cleanup(), g.account.FunctionPrefix)
		for _, p := range cleanup {
			conf, err := defaulter.Apply(p)
			if err != nil {
				return nil, err
			}
			final = append(final, conf)
		}
		g.metricMgr.IncrementMetric(metricmgr.TotalCleanupPolicies, int32(len(cleanup)))
	}

	failures := policy.CheckPolicies(final)
	if len(failures) > 0 {
		for _, name := range policy.FailedPolicies(failures) {
			for _, msg := range failures[name] {
				g.metricMgr.IncrementMetric(metricmgr.TotalFailedChecks, 1)
				errorChan <- errormgr.Error{
					AccountName: g.account.AccountName,
					Region:      region,
					Policy:      name,
					Message:     msg,
				}
			}
		}
		return nil, nil
	}

	env, err := placeholder.NewEnvironment(g.account, region)
	if err != nil {
		return nil, err
	}
	resolved := make([]policy.Policy, 0, len(final))
	for _, p := range final {
		v, err := resolveValue(env, p.Name(), map[string]interface{}(p))
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, policy.Policy(v.(map[string]interface{})))
	}
	g.metricMgr.IncrementMetric(metricmgr.TotalPoliciesGenerated, int32(len(resolved)))

	data, err := marshalConfig(resolved)
	if err != nil {
		return nil, err
	}
	fname := shared.CustodianConfigFile(region)
	g.logger.Infof("writing %s policies to %s...", region, fname)
	file, err := g.writeFile(fname, data)
	if err != nil {
		return nil, err
	}
	out := &regionOutput{policies: resolved, file: file}

	if g.upload {
		bucket := env[string(shared.TokenBucketName)]
		key, err := g.writer.ExportToS3(ctx, region, bucket, fname, g.uploadPrefix, data)
		if err != nil {
			return nil, fmt.Errorf("upload %s to %s: %w", fname, bucket, err)
		}
		g.metricMgr.IncrementMetric(metricmgr.TotalFilesUploaded, 1)
		out.upload = "s3://" + bucket + "/" + key
		g.logger.Infof("uploaded %s", out.upload)
	}
	return out, nil
}

func (g *_Generator) writeFile(name string, data []byte) (string, error) {
	file, err := g.writer.WriteFile(name, data)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	g.metricMgr.IncrementMetric(metricmgr.TotalFilesWritten, 1)
	return file, nil
}

// log every collected error and return them joined in a stable order
func (g *_Generator) reportErrors() error {
	errs := g.errorMgr.GetErrors()
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	checkFailures := 0
	for _, err := range errs {
		var e errormgr.Error
		if errors.As(err, &e) && e.Policy != "" {
			checkFailures++
		}
	}
	if checkFailures > 0 {
		g.logger.Errorf("ERROR: some policies failed sanity/safety checks:")
	}
	for _, err := range errs {
		g.logger.Errorf("\t%s", err.Error())
	}
	return errors.Join(errs...)
}

func (g *_Generator) logMetrics() {
	snapshot := g.metricMgr.Snapshot()
	names := make([]string, 0, len(snapshot))
	for metric := range snapshot {
		names = append(names, string(metric))
	}
	sort.Strings(names)
	for _, name := range names {
		g.logger.Debugf("metric %s = %d", name, snapshot[metricmgr.Metric(name)])
	}
}

func (g *_Generator) GetAccount() *config.AccountConfig {
	return g.account
}

func (g *_Generator) GetMetricMgr() metricmgr.MetricMgr {
	return g.metricMgr
}

func (g *_Generator) GetErrorMgr() errormgr.ErrorMgr {
	return g.errorMgr
}

func (g *_Generator) GetLogger() logger.Logger {
	return g.logger
}

// resolveValue substitutes placeholders in every string nested in v, map keys included.
func resolveValue(env placeholder.Environment, field string, v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return env.Resolve(field, val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		// original key of every resolved key, to report collisions
		sources := make(map[string]string, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key, err := env.Resolve(field+"."+k, k)
			if err != nil {
				return nil, err
			}
			if prev, ok := sources[key]; ok {
				return nil, fmt.Errorf("keys [%s] and [%s] of [%s] both resolve to [%s]", prev, k, field, key)
			}
			sources[key] = k
			r, err := resolveValue(env, field+"."+key, val[k])
			if err != nil {
				return nil, err
			}
			out[key] = r
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			r, err := resolveValue(env, fmt.Sprintf("%s[%d]", field, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func marshalConfig(policies []policy.Policy) ([]byte, error) {
	list := make([]map[string]interface{}, 0, len(policies))
	for _, p := range policies {
		list = append(list, p)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]interface{}{"policies": list}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package awsclientmgr

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// S3API is the part of the S3 client used to read and publish generated configs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// STSAPI is the part of the STS client used to confirm the target account.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// IAMAPI is the part of the IAM client used to confirm the execution role.
type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

type AWSClientMgr interface {
	// set aws sdk client
	SetSDKClient(region string, name AWSServiceName, client interface{}) error
	// get aws sdk client
	GetSDKClient(region string, name AWSServiceName) (interface{}, bool)
	// return regions with an s3 client
	GetRegions() []string
	// region used for global services (iam, sts)
	GetHomeRegion() string
}

type _AWSClientMgr struct {
	mu         sync.RWMutex
	homeRegion string
	s3Clients  map[string]S3API
	stsClients map[string]STSAPI
	iamClients map[string]IAMAPI
}

type AWSClientMgrInitConfig struct {
	Cfg           aws.Config
	Regions       []string
	AssumeRoleArn string
}

// Init builds one s3 client per region plus sts and iam clients in the home region
// (the region of Cfg). When AssumeRoleArn is set every client uses credentials
// from assuming that role.
func Init(pkgConfig AWSClientMgrInitConfig) (AWSClientMgr, error) {
	if len(pkgConfig.Regions) == 0 {
		return nil, errors.New("no regions given")
	}
	cfg := pkgConfig.Cfg.Copy()
	if cfg.Region == "" {
		cfg.Region = pkgConfig.Regions[0]
	}
	if pkgConfig.AssumeRoleArn != "" {
		log.Printf("assuming role [%s]", pkgConfig.AssumeRoleArn)
		creds := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), pkgConfig.AssumeRoleArn)
		cfg.Credentials = aws.NewCredentialsCache(creds)
	}

	awsclient := NewAWSClientMgr(cfg.Region)
	if err := awsclient.SetSDKClient(cfg.Region, STS, sts.NewFromConfig(cfg)); err != nil {
		return nil, err
	}
	if err := awsclient.SetSDKClient(cfg.Region, IAM, iam.NewFromConfig(cfg)); err != nil {
		return nil, err
	}
	for _, region := range pkgConfig.Regions {
		regionCfg := cfg.Copy()
		regionCfg.Region = region
		if err := awsclient.SetSDKClient(region, S3, s3.NewFromConfig(regionCfg)); err != nil {
			return nil, err
		}
		log.Printf("s3 client loaded for region [%s]\n", region)
	}
	log.Printf("sdk clients loaded for %d regions", len(pkgConfig.Regions))
	return awsclient, nil
}

func NewAWSClientMgr(homeRegion string) AWSClientMgr {
	return &_AWSClientMgr{
		homeRegion: homeRegion,
		s3Clients:  make(map[string]S3API),
		stsClients: make(map[string]STSAPI),
		iamClients: make(map[string]IAMAPI),
	}
}

// set aws sdk client
func (a *_AWSClientMgr) SetSDKClient(region string, serviceName AWSServiceName, client interface{}) error {
	if client == nil {
		return errors.New("client is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch serviceName {
	case S3:
		{
			clientAssert, ok := client.(S3API)
			if !ok {
				return errors.New("client does not implement the s3 api")
			}
			a.s3Clients[region] = clientAssert
		}
	case STS:
		{
			clientAssert, ok := client.(STSAPI)
			if !ok {
				return errors.New("client does not implement the sts api")
			}
			a.stsClients[region] = clientAssert
		}
	case IAM:
		{
			clientAssert, ok := client.(IAMAPI)
			if !ok {
				return errors.New("client does not implement the iam api")
			}
			a.iamClients[region] = clientAssert
		}
	default:
		{
			return errors.New("invalid service name")
		}
	}
	return nil
}

// get aws sdk client
func (a *_AWSClientMgr) GetSDKClient(region string, serviceName AWSServiceName) (interface{}, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	switch serviceName {
	case S3:
		{
			client, ok := a.s3Clients[region]
			return client, ok
		}
	case STS:
		{
			client, ok := a.stsClients[region]
			return client, ok
		}
	case IAM:
		{
			client, ok := a.iamClients[region]
			return client, ok
		}
	default:
		{
			log.Printf("unknown service name [%s]", serviceName)
		}
	}
	return nil, false
}

// get regions
func (a *_AWSClientMgr) GetRegions() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	regions := make([]string, 0, len(a.s3Clients))
	for region := range a.s3Clients {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

func (a *_AWSClientMgr) GetHomeRegion() string {
	return a.homeRegion
}

package writer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/outofoffice3/custodian-policygen/internal/awsclientmgr"
)

// Writer writes generated files locally and publishes them to S3.
type Writer interface {
	// write file under the output directory, returns the full path
	WriteFile(filename string, data []byte) (string, error)
	// upload data to a bucket in the given region, returns the object key
	ExportToS3(ctx context.Context, region, bucket, key, prefix string, data []byte) (string, error)
	// output directory
	GetOutputDir() string
}

type _Writer struct {
	awsClientMgr awsclientmgr.AWSClientMgr
	outputDir    string
}

type WriterInitConfig struct {
	// optional, only required for ExportToS3
	AWSClientMgr awsclientmgr.AWSClientMgr
	OutputDir    string
}

func Init(config WriterInitConfig) (Writer, error) {
	w, err := newWriter(config)
	// return errors
	if err != nil {
		return nil, err
	}
	return w, nil
}

func newWriter(config WriterInitConfig) (*_Writer, error) {
	outputDir := config.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	info, err := os.Stat(outputDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("output path [" + outputDir + "] is not a directory")
	}
	return &_Writer{
		awsClientMgr: config.AWSClientMgr,
		outputDir:    outputDir,
	}, nil
}

// WriteFile writes data to filename in the output directory.
func (w *_Writer) WriteFile(filename string, data []byte) (string, error) {
	fullPath := filepath.Join(w.outputDir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", err
	}
	return fullPath, nil
}

// ExportToS3 uploads data to an S3 bucket using the client for region.
func (w *_Writer) ExportToS3(ctx context.Context, region, bucket, key, prefix string, data []byte) (string, error) {
	if w.awsClientMgr == nil {
		return "", errors.New("aws client mgr is not set")
	}
	client, ok := w.awsClientMgr.GetSDKClient(region, awsclientmgr.S3)
	if !ok {
		return "", errors.New("failed to get S3 client for region [" + region + "]")
	}
	s3Client := client.(awsclientmgr.S3API)

	// object keys always use forward slashes
	fullKey := path.Join(prefix, key)

	_, err := s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(fullKey),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	return fullKey, nil
}

func (w *_Writer) GetOutputDir() string {
	return w.outputDir
}

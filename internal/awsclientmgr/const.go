package awsclientmgr

type AWSServiceName string

const (
	IAM AWSServiceName = "IAM"
	S3  AWSServiceName = "S3"
	STS AWSServiceName = "STS"
)

// Package s3 contains an S3 (or MinIO) backed cqldata.FileStore. Each file row is an object
// keyed "{tenant}/{cloudlet}/{folder}{filename}", folder markers are objects whose key ends with "/".
package s3

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Config struct {
	// "http://127.0.0.1:9000"
	HostEndpointUrl string
	// "us-east-1"
	Region   string
	Username string
	Password string
	// Bucket holding the file objects.
	Bucket string
	// UsePathStyle addresses the bucket in the path, needed by MinIO.
	UsePathStyle bool
}

// Connect to the S3 (or MinIO) endpoint.
func Connect(config Config) *s3.Client {
	client := s3.NewFromConfig(aws.Config{Region: config.Region}, func(o *s3.Options) {
		if config.HostEndpointUrl != "" {
			o.BaseEndpoint = aws.String(config.HostEndpointUrl)
		}
		if config.Username != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(config.Username, config.Password, "")
		}
		o.UsePathStyle = config.UsePathStyle
	})
	return client
}

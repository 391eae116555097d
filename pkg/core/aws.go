package core

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sirupsen/logrus"

	"github.com/dashjay/dirguard/pkg/config"
)

// S3Client quarantines removed files into a bucket.
type S3Client struct {
	cli    s3iface.S3API
	bucket string
	prefix string
}

func NewS3Client(cfg *config.Config) (*S3Client, error) {
	var creds *credentials.Credentials
	if cfg.S3Accesskey != "" && cfg.S3Secretkey != "" {
		creds = credentials.NewStaticCredentials(cfg.S3Accesskey, cfg.S3Secretkey, "")
	} else {
		creds = credentials.NewCredentials(&credentials.SharedCredentialsProvider{})
	}
	awsCfg := &aws.Config{
		Endpoint:         aws.String(cfg.S3Endpoint),
		Credentials:      creds,
		S3ForcePathStyle: aws.Bool(true),
		DisableSSL:       aws.Bool(true),
		Region:           aws.String("default"),
	}
	awsSession, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewS3ClientWithAPI(s3.New(awsSession, awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
}

func NewS3ClientWithAPI(api s3iface.S3API, bucket, prefix string) *S3Client {
	return &S3Client{cli: api, bucket: bucket, prefix: prefix}
}

func (s *S3Client) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

func (s *S3Client) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.objectKey(key))
}

func (s *S3Client) Put(ctx context.Context, key string, body io.ReadSeeker, size int64) error {
	objectKey := s.objectKey(key)
	logrus.WithField("bucket", s.bucket).WithField("key", objectKey).WithField("size", size).Debugln("put object to aws")
	_, err := s.cli.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return nil
}

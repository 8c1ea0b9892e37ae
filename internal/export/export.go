// Package export uploads rendered analysis reports to S3 or the local filesystem.
package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadError reports a failed upload with the operation that failed.
type UploadError struct {
	Op     string // e.g. "load_aws_config", "put_object", "write_file"
	Target string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("export %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Uploader writes a report to its destination.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) error
	// Target describes the destination, e.g. s3://bucket/key.
	Target() string
}

// S3Options configures S3 access. Empty fields fall back to the default AWS
// credential chain and region resolution.
type S3Options struct {
	Region          string
	Endpoint        string // custom endpoint (MinIO, LocalStack)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// ParseTarget picks an uploader for uri: s3://bucket/key for S3, anything
// else (optionally file://) for a local path.
func ParseTarget(ctx context.Context, uri string, opts S3Options) (Uploader, error) {
	if strings.HasPrefix(uri, "s3://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, fmt.Errorf("parse export target: %w", err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("export target %q must be s3://bucket/key", uri)
		}
		return NewS3Uploader(ctx, u.Host, key, opts)
	}
	path := strings.TrimPrefix(uri, "file://")
	if path == "" {
		return nil, fmt.Errorf("export target is empty")
	}
	return &FileUploader{Path: path}, nil
}

// putObjectAPI is the part of the S3 client used for uploads.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader puts reports into a bucket.
type S3Uploader struct {
	Bucket string
	Key    string
	client putObjectAPI
}

// NewS3Uploader loads AWS configuration and builds an S3 client.
func NewS3Uploader(ctx context.Context, bucket, key string, opts S3Options) (*S3Uploader, error) {
	target := "s3://" + bucket + "/" + key
	cfg, err := loadAWSConfig(ctx, opts)
	if err != nil {
		return nil, &UploadError{Op: "load_aws_config", Target: target, Err: err}
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Uploader{Bucket: bucket, Key: key, client: client}, nil
}

func loadAWSConfig(ctx context.Context, opts S3Options) (aws.Config, error) {
	var configOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}
	if opts.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		)
	}
	return cfg, nil
}

// Upload implements Uploader.
func (u *S3Uploader) Upload(ctx context.Context, data []byte, contentType string) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.Bucket),
		Key:           aws.String(u.Key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return &UploadError{Op: "put_object", Target: u.Target(), Err: err}
	}
	return nil
}

// Target implements Uploader.
func (u *S3Uploader) Target() string {
	return "s3://" + u.Bucket + "/" + u.Key
}

// FileUploader writes reports to a local path, creating parent directories.
type FileUploader struct {
	Path string
}

// Upload implements Uploader.
func (u *FileUploader) Upload(ctx context.Context, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(u.Path), 0o755); err != nil {
		return &UploadError{Op: "write_file", Target: u.Path, Err: err}
	}
	if err := os.WriteFile(u.Path, data, 0o644); err != nil {
		return &UploadError{Op: "write_file", Target: u.Path, Err: err}
	}
	return nil
}

// Target implements Uploader.
func (u *FileUploader) Target() string {
	return u.Path
}

package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"igrepost/pkg/config"
	"igrepost/pkg/logger"
)

// Archiver stores a copy of a reposted video
type Archiver interface {
	Archive(ctx context.Context, filePath, key string) error
}

// PutObjectAPI is the part of the S3 client the archiver needs
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads videos to a bucket under a key prefix
type S3Archiver struct {
	client  PutObjectAPI
	bucket  string
	prefix  string
	timeout time.Duration
	logger  logger.Logger
}

// NewS3Archiver wraps an existing client
func NewS3Archiver(client PutObjectAPI, bucket, prefix string, timeout time.Duration, log logger.Logger) *S3Archiver {
	if log == nil {
		log = logger.GetLogger()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &S3Archiver{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		timeout: timeout,
		logger:  log,
	}
}

// New builds an archiver from configuration using the default AWS
// credential chain. It returns nil when no bucket is configured.
func New(ctx context.Context, cfg config.ArchiveConfig, log logger.Logger) (*S3Archiver, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3Archiver(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix, cfg.Timeout, log), nil
}

// Key returns the object key for name under the configured prefix
func (a *S3Archiver) Key(name string) string {
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// Archive uploads the file at filePath as key, relative to the prefix
func (a *S3Archiver) Archive(ctx context.Context, filePath, key string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	fullKey := a.Key(key)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(fullKey),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("video/mp4"),
	})
	if err != nil {
		return fmt.Errorf("couldn't upload object with key: %s, AWS error: %w", fullKey, err)
	}

	a.logger.InfoWithFields("Archived video", map[string]interface{}{
		"bucket": a.bucket,
		"key":    fullKey,
		"bytes":  info.Size(),
	})
	return nil
}

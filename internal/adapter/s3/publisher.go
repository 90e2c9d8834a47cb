// Package s3 publishes artifacts to an S3-compatible bucket (AWS S3, MinIO,
// R2, ...).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads artifacts with PutObject.
type Publisher struct {
	log    *slog.Logger
	client objectPutter
	bucket string
	prefix string
}

// New builds an S3 client from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, log *slog.Logger, cfg config.S3Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normalizeEndpoint(cfg.Endpoint))
		}
	})

	return newPublisher(log, client, cfg.Bucket, cfg.Prefix), nil
}

func newPublisher(log *slog.Logger, client objectPutter, bucket, prefix string) *Publisher {
	return &Publisher{
		log:    log.With("publisher", "s3"),
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Key returns the object key for an artifact name.
func (p *Publisher) Key(name string) string {
	name = strings.TrimLeft(name, "/")
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads data as bucket/prefix/name.
func (p *Publisher) Publish(ctx context.Context, name string, data []byte) error {
	key := p.Key(name)
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(name)),
		CacheControl:  aws.String("no-cache"),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s/%s: %w", p.bucket, key, err)
	}

	p.log.InfoContext(ctx, "artifact published",
		slog.String("bucket", p.bucket),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".json") {
		return "application/json"
	}
	return "application/octet-stream"
}

func normalizeEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

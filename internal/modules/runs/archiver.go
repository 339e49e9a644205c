package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ArchiveConfig locates the S3-compatible bucket finished runs are archived to.
type ArchiveConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
}

// Enabled reports whether a bucket is configured.
func (c ArchiveConfig) Enabled() bool {
	return c.Bucket != ""
}

// Archiver uploads finished run reports to object storage. A nil or disabled Archiver
// skips uploads.
type Archiver struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewArchiver creates an archiver for cfg. It returns nil when no bucket is configured.
func NewArchiver(ctx context.Context, cfg ArchiveConfig, log zerolog.Logger) (*Archiver, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "runs/"
	}

	return &Archiver{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   prefix,
		log:      log.With().Str("component", "run_archiver").Logger(),
	}, nil
}

// Upload stores body under key
func (a *Archiver) Upload(ctx context.Context, key string, body io.Reader) error {
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Archive uploads the JSON report of run and returns its object key. A nil Archiver
// returns an empty key.
func (a *Archiver) Archive(ctx context.Context, run *Run) (string, error) {
	if a == nil {
		return "", nil
	}

	body, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run %s: %w", run.ID, err)
	}

	key := a.prefix + run.ID + ".json"
	if err := a.Upload(ctx, key, bytes.NewReader(body)); err != nil {
		return "", err
	}

	a.log.Info().
		Str("run_id", run.ID).
		Str("key", key).
		Int("bytes", len(body)).
		Msg("Archived run report")
	return key, nil
}

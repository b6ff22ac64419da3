package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"nemoship/internal/logging"
	"nemoship/internal/services"
)

// BucketAPI is the subset of the S3 client used to manage the bucket.
type BucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// ObjectUploader matches manager.Uploader.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Storage uploads model archives to S3.
type Storage struct {
	buckets  BucketAPI
	uploader ObjectUploader
	region   string
	logger   *slog.Logger
}

// NewStorage wires bucket management and uploads for region.
func NewStorage(buckets BucketAPI, uploader ObjectUploader, region string, logger *slog.Logger) *Storage {
	return &Storage{
		buckets:  buckets,
		uploader: uploader,
		region:   region,
		logger:   logging.NewComponentLogger(logger, "s3"),
	}
}

// EnsureBucket creates bucket when it does not exist. It reports whether
// the bucket was created.
func (s *Storage) EnsureBucket(ctx context.Context, bucket string) (bool, error) {
	_, err := s.buckets.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return false, nil
	}
	if !isNotFound(err) {
		return false, services.Wrap(services.ErrCloud, "upload", "head bucket", bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 rejects an explicit location constraint.
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.buckets.CreateBucket(ctx, input); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return false, nil
		}
		return false, services.Wrap(services.ErrCloud, "upload", "create bucket", bucket, err)
	}
	s.logger.Info("created bucket", logging.String("bucket", bucket), logging.String("region", s.region))
	return true, nil
}

// Upload copies the file at path to s3://bucket/key and returns that URL.
func (s *Storage) Upload(ctx context.Context, path, bucket, key string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "upload", "open archive", path, err)
	}
	defer f.Close()

	start := time.Now()
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/gzip"),
	}); err != nil {
		return "", services.Wrap(services.ErrCloud, "upload", "put object", key, err)
	}

	url := S3URL(bucket, key)
	s.logger.Info("uploaded model archive",
		logging.String("url", url),
		logging.Duration("elapsed", time.Since(start)),
	)
	return url, nil
}

// S3URL formats an s3:// URL.
func S3URL(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, strings.TrimLeft(key, "/"))
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

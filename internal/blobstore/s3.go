package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/worklog/internal/common"
)

const presignValidity = 15 * time.Minute

// Seams for testing the AWS SDK wiring.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

// S3Store keeps blobs in an S3-compatible bucket (AWS S3 or MinIO).
// Storage paths are object keys of the form "worklog-files/<name>".
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// S3Options carries the object-storage settings from config.
type S3Options struct {
	RootUser     string // MINIO_ROOT_USER / access key id
	RootPassword string // MINIO_ROOT_PASSWORD / secret access key
	Bucket       string
	Region       string
	BaseEndpoint string
}

// NewS3Store builds an S3Store from static credentials and a base endpoint,
// the same way the server reaches its S3-compatible backend elsewhere.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.RootUser,
			opts.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{
		client:  client,
		presign: newS3PresignClient(client),
		bucket:  opts.Bucket,
	}, nil
}

// Store uploads content under a generated object key. Uploads are bounded
// by the attachment size policy, so buffering the body to learn its length
// is acceptable.
func (s *S3Store) Store(ctx context.Context, content io.Reader, suggestedExt string) (StoreResult, error) {
	var zero StoreResult
	if content == nil {
		return zero, fmt.Errorf("content is required")
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return zero, fmt.Errorf("%w: read upload: %v", common.ErrStorageIO, err)
	}

	storedName := GenerateStoredName(suggestedExt)
	key := blobSubdir + "/" + storedName

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return zero, fmt.Errorf("%w: put object %s: %v", common.ErrStorageIO, key, err)
	}

	return StoreResult{StoredName: storedName, StoragePath: key, SizeBytes: int64(len(data))}, nil
}

// Exists checks object presence with a HEAD request.
func (s *S3Store) Exists(ctx context.Context, storagePath string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storagePath),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: head object %s: %v", common.ErrStorageIO, storagePath, err)
	}
	return true, nil
}

// Delete removes the object. S3 deletes are idempotent, so the boolean
// reflects whether the object was present beforehand.
func (s *S3Store) Delete(ctx context.Context, storagePath string) (bool, error) {
	existed, err := s.Exists(ctx, storagePath)
	if err != nil {
		return false, err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storagePath),
	})
	if err != nil {
		return false, fmt.Errorf("%w: delete object %s: %v", common.ErrStorageIO, storagePath, err)
	}
	return existed, nil
}

// ResolveForStreaming returns a presigned GET URL for the object.
func (s *S3Store) ResolveForStreaming(ctx context.Context, storagePath string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storagePath),
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		return "", fmt.Errorf("%w: presign get %s: %v", common.ErrStorageIO, storagePath, err)
	}
	return req.URL, nil
}

var _ BlobStore = (*S3Store)(nil)

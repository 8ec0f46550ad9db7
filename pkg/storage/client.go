package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/brightpath-solar/siteimg/pkg/errors"
)

// Client provides the S3 operations the image tools need: reading source
// images referenced by s3:// descriptors and publishing optimized output.
type Client struct {
	s3Client *s3.Client
	uploader *manager.Uploader
}

// NewClient creates an S3 client. Anonymous clients can only read public
// buckets; publishing needs the default credential chain.
func NewClient(ctx context.Context, region string, anonymous bool) (*Client, error) {
	slog.Info("s3_client_init", "region", region, "anonymous", anonymous)

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if anonymous {
		opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	s3Client := s3.NewFromConfig(cfg)

	slog.Info("s3_client_created", "region", region)

	return &Client{
		s3Client: s3Client,
		uploader: manager.NewUploader(s3Client),
	}, nil
}

// Download reads an object fully into memory. Objects larger than maxSize
// bytes are rejected without buffering the remainder.
func (c *Client) Download(ctx context.Context, bucket, key string, maxSize int64) ([]byte, error) {
	slog.Info("s3_download_start", "bucket", bucket, "s3_key", key)

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Error("s3_get_object_failed", "bucket", bucket, "s3_key", key, "error", err)
		return nil, errors.Wrap(err, "failed to get object from S3")
	}
	defer result.Body.Close()

	if result.ContentLength != nil && *result.ContentLength > maxSize {
		return nil, fmt.Errorf("object size %d exceeds max %d", *result.ContentLength, maxSize)
	}

	hash := sha256.New()
	var buf bytes.Buffer
	size, err := io.Copy(io.MultiWriter(&buf, hash), io.LimitReader(result.Body, maxSize+1))
	if err != nil {
		slog.Error("s3_download_failed", "s3_key", key, "error", err)
		return nil, errors.Wrap(err, "failed to download object")
	}
	if size > maxSize {
		return nil, fmt.Errorf("object exceeds max size %d", maxSize)
	}

	checksum := hex.EncodeToString(hash.Sum(nil))
	slog.Info("s3_download_complete",
		"s3_key", key,
		"size_kb", size/1024,
		"sha256", checksum[:16]+"...",
	)

	return buf.Bytes(), nil
}

// UploadInput describes one object to publish.
type UploadInput struct {
	Bucket       string
	Key          string
	ContentType  string
	CacheControl string
	Body         io.Reader
}

// Upload streams an object to S3 through the multipart-capable upload
// manager.
func (c *Client) Upload(ctx context.Context, in UploadInput) error {
	slog.Info("s3_upload_start", "bucket", in.Bucket, "s3_key", in.Key, "content_type", in.ContentType)

	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(in.Bucket),
		Key:          aws.String(in.Key),
		Body:         in.Body,
		ContentType:  aws.String(in.ContentType),
		CacheControl: aws.String(in.CacheControl),
	})
	if err != nil {
		slog.Error("s3_upload_failed", "bucket", in.Bucket, "s3_key", in.Key, "error", err)
		return errors.Wrapf(err, "failed to upload %s", in.Key)
	}

	slog.Info("s3_upload_complete", "bucket", in.Bucket, "s3_key", in.Key)
	return nil
}

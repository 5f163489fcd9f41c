package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectAPI is the subset of the S3 client the blobs use
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

type S3Client struct {
	client ObjectAPI
	bucket string
	prefix string
}

// NewS3Client creates a client for AWS S3 or any S3-compatible endpoint
// (MinIO, DigitalOcean Spaces). Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, opts S3Options) (*S3Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.SecretAccessKey, "",
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true // Required for most S3-compatible services
		}
	})

	log.Printf("[S3] Using bucket %s (prefix %q)", opts.Bucket, opts.Prefix)
	return NewS3ClientWithAPI(client, opts.Bucket, opts.Prefix), nil
}

// NewS3ClientWithAPI wraps an existing object API, typically a fake in tests.
func NewS3ClientWithAPI(api ObjectAPI, bucket, prefix string) *S3Client {
	return &S3Client{client: api, bucket: bucket, prefix: prefix}
}

// Blob returns the document stored under name within the client's prefix.
func (c *S3Client) Blob(name string) *S3Blob {
	return &S3Blob{client: c, key: path.Join(c.prefix, name)}
}

// S3Blob is a JSON document kept as a single S3 object
type S3Blob struct {
	client *S3Client
	key    string
}

func (b *S3Blob) Key() string {
	return b.key
}

func (b *S3Blob) Read(ctx context.Context) ([]byte, error) {
	out, err := b.client.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.client.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", b.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.key, err)
	}
	return data, nil
}

func (b *S3Blob) Write(ctx context.Context, data []byte) error {
	_, err := b.client.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.client.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", b.key, err)
	}
	return nil
}

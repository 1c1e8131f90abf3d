package buildcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible cache
type S3Config struct {
	Endpoint  string `yaml:"endpoint" validate:"required"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket" validate:"required"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

// S3Cache stores each entry as one JSON object in an S3-compatible bucket
type S3Cache struct {
	client   *minio.Client
	bucket   string
	region   string
	prefix   string
	initOnce sync.Once
	initErr  error
}

// NewS3Cache creates an S3 cache client. Credentials are required.
func NewS3Cache(cfg S3Config) (*S3Cache, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Cache{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (c *S3Cache) ensureBucket(ctx context.Context) error {
	c.initOnce.Do(func() {
		exists, err := c.client.BucketExists(ctx, c.bucket)
		if err != nil {
			c.initErr = err
			return
		}
		if exists {
			return
		}
		c.initErr = c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region})
	})
	return c.initErr
}

func (c *S3Cache) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	if err := c.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	obj, err := c.client.GetObject(ctx, c.bucket, objectKey(c.prefix, fingerprint), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, nil
		}
		return nil, err
	}
	return decode(fingerprint, data)
}

func (c *S3Cache) Put(ctx context.Context, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if err := c.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	data, err := encode(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	_, err = c.client.PutObject(ctx, c.bucket, objectKey(c.prefix, entry.Fingerprint), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

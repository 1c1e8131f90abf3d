package buildcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSConfig configures a Google Cloud Storage cache
type GCSConfig struct {
	Bucket string `yaml:"bucket" validate:"required"`
	Prefix string `yaml:"prefix"`
	// CredentialsFile is a service account key; empty uses application default credentials
	CredentialsFile string `yaml:"credentialsFile"`
}

// GCSCache stores each entry as one JSON object in a GCS bucket
type GCSCache struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSCache creates a GCS cache client
func NewGCSCache(ctx context.Context, cfg GCSConfig) (*GCSCache, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSCache{
		client: client,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (c *GCSCache) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	reader, err := c.client.Bucket(c.bucket).Object(objectKey(c.prefix, fingerprint)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open GCS object for %s: %w", fingerprint, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object for %s: %w", fingerprint, err)
	}
	return decode(fingerprint, data)
}

func (c *GCSCache) Put(ctx context.Context, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	data, err := encode(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	writer := c.client.Bucket(c.bucket).Object(objectKey(c.prefix, entry.Fingerprint)).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write GCS object for %s: %w", entry.Fingerprint, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", entry.Fingerprint, err)
	}
	return nil
}

// Close releases the underlying client
func (c *GCSCache) Close() error {
	return c.client.Close()
}

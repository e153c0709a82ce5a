package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	stderr "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/uvtools/uvcache/pkg/errors"
	"github.com/uvtools/uvcache/pkg/types"
)

// DefaultOperationTimeout bounds every remote tier call.
const DefaultOperationTimeout = 5 * time.Second

// S3Tier stores cache entries as objects in a bucket, one object per key
// under a configurable prefix. Payloads are JSON, gzip-compressed when
// compression is enabled. Every call is bounded by the operation timeout.
type S3Tier struct {
	client      *s3.Client
	bucket      string
	prefix      string
	compression bool
	timeout     time.Duration

	// Statistics, session-local
	mu          sync.Mutex
	hits        uint64
	misses      uint64
	accessCount uint64
	accessTime  time.Duration
}

// S3TierConfig represents S3 tier configuration
type S3TierConfig struct {
	Bucket           string        `yaml:"bucket"`
	Prefix           string        `yaml:"prefix"`
	Region           string        `yaml:"region"`
	Endpoint         string        `yaml:"endpoint"`
	ForcePathStyle   bool          `yaml:"force_path_style"`
	AccessKeyID      string        `yaml:"access_key_id"`
	SecretAccessKey  string        `yaml:"secret_access_key"`
	Compression      bool          `yaml:"compression"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// NewS3Tier creates an S3 tier against the configured bucket
func NewS3Tier(ctx context.Context, cfg *S3TierConfig) (*S3Tier, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "s3 bucket cannot be empty").
			WithComponent("s3")
	}

	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnectionFailed, "failed to load AWS config", err).
			WithComponent("s3")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Tier{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		compression: cfg.Compression,
		timeout:     timeout,
	}, nil
}

// Name returns the tier name
func (t *S3Tier) Name() string {
	return "s3"
}

// SaveEntry uploads the entry as a single object
func (t *S3Tier) SaveEntry(key string, entry *types.CacheEntry) error {
	if entry == nil {
		return errors.NewError(errors.ErrCodeStorageWrite, "cannot store nil entry").
			WithComponent("s3").WithOperation("SaveEntry").WithKey(key)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to serialize entry", err).
			WithComponent("s3").WithOperation("SaveEntry").WithKey(key)
	}

	data := payload
	if t.compression {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(payload); err != nil {
			return errors.Wrap(errors.ErrCodeStorageWrite, "failed to compress entry", err).
				WithComponent("s3").WithOperation("SaveEntry").WithKey(key)
		}
		if err := gw.Close(); err != nil {
			return errors.Wrap(errors.ErrCodeStorageWrite, "failed to compress entry", err).
				WithComponent("s3").WithOperation("SaveEntry").WithKey(key)
		}
		data = buf.Bytes()
	}

	ctx, cancel := t.opContext()
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(t.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	}

	if _, err := t.client.PutObject(ctx, input); err != nil {
		return t.translateError(err, errors.ErrCodeStorageWrite, "SaveEntry", key)
	}
	return nil
}

// LoadEntry downloads and decodes the entry object
func (t *S3Tier) LoadEntry(key string) (*types.CacheEntry, error) {
	start := time.Now()

	entry, err := t.fetchEntry("LoadEntry", key)
	if err != nil {
		t.recordMiss()
		return nil, err
	}

	t.recordHit(time.Since(start))
	return entry, nil
}

// SaveTexture attaches a preview texture to an existing entry and re-uploads it
func (t *S3Tier) SaveTexture(key string, pixels *types.PixelBuffer) error {
	entry, err := t.fetchEntry("SaveTexture", key)
	if err != nil {
		return err
	}

	entry.Preview = pixels.Clone()
	return t.SaveEntry(key, entry)
}

// LoadTexture downloads the entry and returns its preview texture
func (t *S3Tier) LoadTexture(key string) (*types.PixelBuffer, error) {
	start := time.Now()

	entry, err := t.fetchEntry("LoadTexture", key)
	if err != nil {
		t.recordMiss()
		return nil, err
	}

	if entry.Preview == nil {
		t.recordMiss()
		return nil, errors.NewError(errors.ErrCodeEntryNotFound, "texture not found").
			WithComponent("s3").WithOperation("LoadTexture").WithKey(key)
	}

	t.recordHit(time.Since(start))
	return entry.Preview, nil
}

// HasCache checks object existence with a metadata request
func (t *S3Tier) HasCache(key string) bool {
	ctx, cancel := t.opContext()
	defer cancel()

	input := &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(key)),
	}

	_, err := t.client.HeadObject(ctx, input)
	return err == nil
}

// ClearCache deletes the entry object. Deleting a missing object succeeds.
func (t *S3Tier) ClearCache(key string) error {
	ctx, cancel := t.opContext()
	defer cancel()

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(key)),
	}

	if _, err := t.client.DeleteObject(ctx, input); err != nil {
		translated := t.translateError(err, errors.ErrCodeStorageWrite, "ClearCache", key)
		if errors.IsNotFound(translated) {
			return nil
		}
		return translated
	}
	return nil
}

// ClearAllCache lists every object under the prefix and deletes them
func (t *S3Tier) ClearAllCache() error {
	var continuation *string

	for {
		ctx, cancel := t.opContext()
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(t.bucket),
			Prefix:            aws.String(t.prefix),
			ContinuationToken: continuation,
		}

		result, err := t.client.ListObjectsV2(ctx, input)
		cancel()
		if err != nil {
			return t.translateError(err, errors.ErrCodeStorageRead, "ClearAllCache", t.prefix)
		}

		for _, obj := range result.Contents {
			ctx, cancel := t.opContext()
			_, err := t.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(t.bucket),
				Key:    obj.Key,
			})
			cancel()
			if err != nil {
				return t.translateError(err, errors.ErrCodeStorageWrite, "ClearAllCache", aws.ToString(obj.Key))
			}
		}

		if result.NextContinuationToken == nil {
			return nil
		}
		continuation = result.NextContinuationToken
	}
}

// GetStatistics returns session-local counters; the bucket is never scanned
func (t *S3Tier) GetStatistics() types.CacheStatistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := types.CacheStatistics{
		Tier:   t.Name(),
		Hits:   t.hits,
		Misses: t.misses,
	}
	if total := t.hits + t.misses; total > 0 {
		stats.HitRate = float64(t.hits) / float64(total)
	}
	if t.accessCount > 0 {
		stats.AverageAccessMs = float64(t.accessTime.Milliseconds()) / float64(t.accessCount)
	}
	return stats
}

// Helper methods

func (t *S3Tier) fetchEntry(operation, key string) (*types.CacheEntry, error) {
	ctx, cancel := t.opContext()
	defer cancel()

	input := &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.objectKey(key)),
	}

	result, err := t.client.GetObject(ctx, input)
	if err != nil {
		return nil, t.translateError(err, errors.ErrCodeStorageRead, operation, key)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, "failed to read object body", err).
			WithComponent("s3").WithOperation(operation).WithKey(key)
	}

	payload, err := decompressIfGzipped(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, "failed to decompress entry", err).
			WithComponent("s3").WithOperation(operation).WithKey(key)
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, "failed to decode entry", err).
			WithComponent("s3").WithOperation(operation).WithKey(key)
	}

	return &entry, nil
}

func (t *S3Tier) objectKey(key string) string {
	return t.prefix + key + entryFileSuffix
}

func (t *S3Tier) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), t.timeout)
}

func (t *S3Tier) translateError(err error, code errors.ErrorCode, operation, key string) error {
	switch {
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		return errors.NewError(errors.ErrCodeEntryNotFound, "entry not found").
			WithComponent("s3").WithOperation(operation).WithKey(key)
	case isErrorType[*s3types.NoSuchBucket](err):
		return errors.Wrap(errors.ErrCodeConnectionFailed,
			fmt.Sprintf("bucket not found: %s", t.bucket), err).
			WithComponent("s3").WithOperation(operation).WithKey(key)
	case stderr.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeOperationTimeout,
			fmt.Sprintf("%s timed out after %v", operation, t.timeout), err).
			WithComponent("s3").WithOperation(operation).WithKey(key)
	default:
		return errors.Wrap(code, fmt.Sprintf("%s failed", operation), err).
			WithComponent("s3").WithOperation(operation).WithKey(key)
	}
}

func (t *S3Tier) recordHit(elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hits++
	t.accessCount++
	t.accessTime += elapsed
}

func (t *S3Tier) recordMiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.misses++
}

// decompressIfGzipped inflates the payload when it carries the gzip magic
// bytes, so readers stay compatible with writers on either compression
// setting
func decompressIfGzipped(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}

	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = gr.Close() }()

	return io.ReadAll(gr)
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return stderr.As(err, &target)
}

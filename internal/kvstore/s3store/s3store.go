// Package s3store keeps each key as one JSON object in an S3-compatible
// bucket (AWS S3, MinIO).
//
// Update is a compare-and-swap on the object's ETag: the write carries
// If-Match with the ETag that was read, or If-None-Match: * when the object
// did not exist, and is retried from the read when another writer got there
// first.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/sakif/tasktracker/internal/kvstore"
)

const (
	objectExt      = ".json"
	maxUpdateTries = 64
)

var ErrTooManyConflicts = errors.New("s3store: too many concurrent writers")

// objectAPI is the part of *s3.Client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// newS3ClientFromConfig is a seam for tests.
var newS3ClientFromConfig = s3.NewFromConfig

var _ kvstore.Store = (*Store)(nil)

type Options struct {
	Bucket    string
	Region    string
	Endpoint  string // empty for AWS; e.g. http://127.0.0.1:9000 for MinIO
	AccessKey string // empty to use the default AWS credential chain
	SecretKey string
	Prefix    string
}

type Store struct {
	api    objectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

func New(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: loading AWS config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newWithAPI(client, opts.Bucket, opts.Prefix, logger), nil
}

func newWithAPI(api objectAPI, bucket, prefix string, logger *slog.Logger) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{api: api, bucket: bucket, prefix: prefix, logger: logger}
}

func (s *Store) objectKey(key string) (string, error) {
	if !kvstore.ValidKey(key) {
		return "", fmt.Errorf("s3store: %q: %w", key, kvstore.ErrInvalidKey)
	}
	return s.prefix + key + objectExt, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k, err := s.objectKey(key)
	if err != nil {
		return nil, false, err
	}
	data, _, ok, err := s.get(ctx, k)
	return data, ok, err
}

func (s *Store) get(ctx context.Context, k string) (data []byte, etag *string, ok bool, err error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if isNotFound(err) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("s3store: getting %s: %w", k, err)
	}
	defer out.Body.Close()

	data, err = io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, false, fmt.Errorf("s3store: reading %s: %w", k, err)
	}
	return data, out.ETag, true, nil
}

func (s *Store) put(ctx context.Context, k string, value []byte, ifMatch *string, ifNoneMatch *string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(k),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
		IfMatch:     ifMatch,
		IfNoneMatch: ifNoneMatch,
	})
	return err
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if err := s.put(ctx, k, value, nil, nil); err != nil {
		return fmt.Errorf("s3store: putting %s: %w", k, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}
	return s.remove(ctx, k)
}

func (s *Store) remove(ctx context.Context, k string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3store: deleting %s: %w", k, err)
	}
	return nil
}

// Clear deletes every object under the prefix.
func (s *Store) Clear(ctx context.Context) error {
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3store: listing %s: %w", s.prefix, err)
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if !strings.HasSuffix(k, objectExt) {
				continue
			}
			if err := s.remove(ctx, k); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) Update(ctx context.Context, key string, fn kvstore.UpdateFunc) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}

	for attempt := 1; attempt <= maxUpdateTries; attempt++ {
		cur, etag, ok, err := s.get(ctx, k)
		if err != nil {
			return err
		}
		next, err := fn(cur, ok)
		if err != nil {
			if errors.Is(err, kvstore.ErrSkipWrite) {
				return nil
			}
			return err
		}

		var ifMatch, ifNoneMatch *string
		if ok {
			ifMatch = etag
		} else {
			ifNoneMatch = aws.String("*")
		}

		err = s.put(ctx, k, next, ifMatch, ifNoneMatch)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return fmt.Errorf("s3store: putting %s: %w", k, err)
		}
		s.logger.Debug("s3 update conflict, retrying",
			slog.String("key", key),
			slog.Int("attempt", attempt),
		)
	}
	return fmt.Errorf("%w: key %s", ErrTooManyConflicts, key)
}

func (s *Store) Close() error { return nil }

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// isConflict matches the errors S3 returns when a conditional write loses.
func isConflict(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

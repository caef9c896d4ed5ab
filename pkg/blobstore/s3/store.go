// Package s3 implements the blob store port on top of an S3-compatible
// object store using the AWS SDK v2.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Ramsey-B/fern/pkg/blobstore"
)

const contentTypeJSON = "application/json"

// Config holds the adapter settings.
type Config struct {
	Bucket string
	// Timeout bounds every individual backend call. Zero disables the bound.
	Timeout time.Duration
}

// Store talks to a single bucket. The conditional GET is the only
// precondition S3 enforces atomically for this adapter; writes are
// unconditional and versioned by the ETag S3 mints.
type Store struct {
	client  *s3.Client
	bucket  string
	timeout time.Duration
}

// New creates a store for the configured bucket.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		timeout: cfg.Timeout,
	}
}

func (s *Store) Get(ctx context.Context, key, ifNoneMatch string) (*blobstore.Object, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}
	if ifNoneMatch != "" {
		input.IfNoneMatch = aws.String(quoteETag(ifNoneMatch))
	}

	output, err := s.client.GetObject(ctx, input)
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		if statusCode(err) == http.StatusNotModified {
			return nil, &blobstore.NotModifiedError{ETag: unquoteETag(ifNoneMatch)}
		}
		if statusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, err
	}

	return &blobstore.Object{
		Data: data,
		Meta: objectMeta(key, output.ETag, aws.ToInt64(output.ContentLength), output.LastModified),
	}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) (blobstore.Meta, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	output, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentTypeJSON),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return blobstore.Meta{}, err
	}

	now := time.Now().UTC()
	return objectMeta(key, output.ETag, int64(len(data)), &now), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	return err
}

func (s *Store) Head(ctx context.Context, key string) (*blobstore.Meta, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		if statusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	meta := objectMeta(key, output.ETag, aws.ToInt64(output.ContentLength), output.LastModified)
	return &meta, nil
}

func (s *Store) List(ctx context.Context, prefix, token string, limit int) (blobstore.ListPage, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	}
	if token != "" {
		input.ContinuationToken = &token
	}
	if limit > 0 {
		input.MaxKeys = aws.Int32(int32(limit))
	}

	output, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return blobstore.ListPage{}, err
	}

	page := blobstore.ListPage{
		Objects: make([]blobstore.Meta, 0, len(output.Contents)),
	}
	for _, item := range output.Contents {
		page.Objects = append(page.Objects, objectMeta(aws.ToString(item.Key), item.ETag, aws.ToInt64(item.Size), item.LastModified))
	}
	if aws.ToBool(output.IsTruncated) {
		page.NextToken = aws.ToString(output.NextContinuationToken)
	}
	return page, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.bucket})
	return err
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func objectMeta(key string, etag *string, size int64, lastModified *time.Time) blobstore.Meta {
	meta := blobstore.Meta{
		Key:  key,
		ETag: unquoteETag(aws.ToString(etag)),
		Size: size,
	}
	if lastModified != nil {
		meta.LastModified = *lastModified
	}
	return meta
}

// statusCode extracts the HTTP status from an SDK response error, or 0.
func statusCode(err error) int {
	var responseErr *awshttp.ResponseError
	if errors.As(err, &responseErr) {
		return responseErr.HTTPStatusCode()
	}
	return 0
}

func unquoteETag(etag string) string {
	return strings.Trim(strings.TrimPrefix(etag, "W/"), `"`)
}

// quoteETag normalizes a client validator to the strong quoted form S3
// compares against. Weak validators are meaningless here; content etags are
// always strong.
func quoteETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	if strings.HasPrefix(etag, `"`) {
		return etag
	}
	return `"` + etag + `"`
}

// Package postgres implements the blob store port on a single Postgres
// table, for deployments without an object store. ETags are MD5 content
// fingerprints minted on every write, mirroring what S3 reports for simple
// uploads.
package postgres

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/blobstore"
	"github.com/Ramsey-B/fern/pkg/database"
)

const blobsTable = "blobs"

type blobRow struct {
	Key          string    `db:"key"`
	Data         []byte    `db:"data"`
	ETag         string    `db:"etag"`
	Size         int64     `db:"size"`
	LastModified time.Time `db:"last_modified"`
}

// Store persists blobs in the blobs table.
type Store struct {
	db     database.DB
	logger ectologger.Logger
}

// New creates a store over an open database connection.
func New(db database.DB, logger ectologger.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Get(ctx context.Context, key, ifNoneMatch string) (*blobstore.Object, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("key", "data", "etag", "size", "last_modified")
	sb.From(blobsTable)
	sb.Where(sb.Equal("key", key))

	query, args := sb.Build()
	var row blobRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("Failed to get blob")
		return nil, err
	}

	if ifNoneMatch != "" && trimETag(ifNoneMatch) == row.ETag {
		return nil, &blobstore.NotModifiedError{ETag: row.ETag}
	}

	return &blobstore.Object{Data: row.Data, Meta: rowMeta(row)}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) (blobstore.Meta, error) {
	sum := md5.Sum(data)
	meta := blobstore.Meta{
		Key:          key,
		ETag:         hex.EncodeToString(sum[:]),
		Size:         int64(len(data)),
		LastModified: time.Now().UTC(),
	}

	query := `
		INSERT INTO blobs (key, data, etag, size, last_modified)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET data = EXCLUDED.data,
		    etag = EXCLUDED.etag,
		    size = EXCLUDED.size,
		    last_modified = EXCLUDED.last_modified
	`
	if _, err := s.db.ExecContext(ctx, query, key, data, meta.ETag, meta.Size, meta.LastModified); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("Failed to put blob")
		return blobstore.Meta{}, err
	}
	return meta, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(blobsTable)
	db.Where(db.Equal("key", key))

	query, args := db.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("Failed to delete blob")
		return err
	}
	return nil
}

func (s *Store) Head(ctx context.Context, key string) (*blobstore.Meta, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("key", "''::bytea AS data", "etag", "size", "last_modified")
	sb.From(blobsTable)
	sb.Where(sb.Equal("key", key))

	query, args := sb.Build()
	var row blobRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("Failed to head blob")
		return nil, err
	}

	meta := rowMeta(row)
	return &meta, nil
}

func (s *Store) List(ctx context.Context, prefix, token string, limit int) (blobstore.ListPage, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("key", "''::bytea AS data", "etag", "size", "last_modified")
	sb.From(blobsTable)
	conditions := []string{sb.Like("key", escapeLike(prefix)+"%")}
	if token != "" {
		conditions = append(conditions, sb.GreaterThan("key", token))
	}
	sb.Where(conditions...)
	sb.OrderBy("key")
	if limit > 0 {
		// Fetch one extra row to detect truncation.
		sb.Limit(limit + 1)
	}

	query, args := sb.Build()
	var rows []blobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("prefix", prefix).Error("Failed to list blobs")
		return blobstore.ListPage{}, err
	}

	page := blobstore.ListPage{}
	for i, row := range rows {
		if limit > 0 && i == limit {
			page.NextToken = page.Objects[len(page.Objects)-1].Key
			break
		}
		page.Objects = append(page.Objects, rowMeta(row))
	}
	return page, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// escapeLike escapes LIKE wildcards so key prefixes match literally. Ids and
// namespaces may legally contain underscores.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func trimETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}

func rowMeta(row blobRow) blobstore.Meta {
	return blobstore.Meta{
		Key:          row.Key,
		ETag:         row.ETag,
		Size:         row.Size,
		LastModified: row.LastModified,
	}
}

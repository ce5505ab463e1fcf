// Package storage archives the raw files behind a session.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrBucketMissing is returned by archive health checks when the target
// bucket does not exist.
var ErrBucketMissing = errors.New("archive bucket does not exist")

// Object is one archived upload.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

// Archiver persists raw uploads outside the session working directory.
type Archiver interface {
	Archive(ctx context.Context, obj Object) (ObjectInfo, error)
}

// UploadFile is one raw upload destined for the session archive.
type UploadFile struct {
	Role string
	Name string
	Data []byte
}

// Metadata keys attached to every archived upload.
const (
	MetaSessionID    = "session-id"
	MetaRole         = "upload-role"
	MetaOriginalName = "original-name"
)

// ArchiveUploads copies a session's raw uploads to the archiver and returns
// the written keys in input order. It stops at the first failure.
func ArchiveUploads(ctx context.Context, archiver Archiver, sessionID string, files []UploadFile) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		key, err := BuildUploadPath(sessionID, file.Role, file.Name)
		if err != nil {
			return keys, err
		}
		obj := Object{
			Key:         key,
			Data:        file.Data,
			ContentType: ContentTypeFor(file.Name),
			Metadata: map[string]string{
				MetaSessionID: sessionID,
				MetaRole:      file.Role,
				// S3 user metadata is ASCII only.
				MetaOriginalName: url.QueryEscape(file.Name),
			},
		}
		if _, err := archiver.Archive(ctx, obj); err != nil {
			return keys, fmt.Errorf("archive %s upload %q: %w", file.Role, file.Name, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func ContentTypeFor(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".csv":
		return "text/csv"
	case ".tsv":
		return "text/tab-separated-values"
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

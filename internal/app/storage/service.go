/*
Package storage is the blob store behind POST /upload. Blobs are opaque: the
store only keeps bytes under a key and tells the caller where to fetch them.
*/
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Backend kinds accepted by NewStorageService.
const (
	KindLocal = "local"
	KindS3    = "s3"
)

// ServiceConfig selects and configures the blob store.
type ServiceConfig struct {
	Kind string

	// LocalDir is where the local backend writes blobs.
	LocalDir string
	// LocalURLPrefix is the public path the local blobs are served under.
	LocalURLPrefix string

	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	// S3PublicBaseURL, when set, is joined with the key to form public URLs.
	// Otherwise URLs are presigned GETs.
	S3PublicBaseURL string
}

// StorageService stores blobs and returns the URL they can be fetched from.
type StorageService interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// NewStorageService builds the backend selected by cfg.Kind.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	switch cfg.Kind {
	case KindLocal, "":
		return NewLocalStore(cfg.LocalDir, cfg.LocalURLPrefix)
	case KindS3:
		return newS3Client(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Kind)
	}
}

// contentTypeExt maps accepted upload media types to file extensions.
var contentTypeExt = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"audio/webm":      "webm",
	"audio/ogg":       "ogg",
	"audio/mpeg":      "mp3",
	"audio/mp4":       "m4a",
	"audio/wav":       "wav",
	"audio/x-wav":     "wav",
	"video/webm":      "webm",
	"video/mp4":       "mp4",
	"application/pdf": "pdf",
}

// ExtensionFor returns the file extension for a declared media type, "bin" when unknown.
func ExtensionFor(mediaType string) string {
	if ext, ok := contentTypeExt[strings.ToLower(mediaType)]; ok {
		return ext
	}
	return "bin"
}

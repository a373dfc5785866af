/*
Package randx generates identifiers: message ids and blob names.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

// MessageID returns a random UUID v4 string.
func MessageID() string {
	return uuid.New().String()
}

// BlobName returns a unique file name with the given extension.
// ext may be given with or without its leading dot.
func BlobName(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return uuid.New().String()
	}
	return uuid.New().String() + "." + ext
}

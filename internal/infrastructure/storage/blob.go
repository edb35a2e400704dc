// Package storage archives raw upload material behind outbound.BlobStore
package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ErrBlobNotFound is returned by Get for unknown references
var ErrBlobNotFound = errors.New("blob not found")

// ErrForeignRef is returned when a reference points at another store
var ErrForeignRef = errors.New("blob reference does not belong to this store")

var preferredExtensions = map[string]string{
	"text/plain":      ".txt",
	"text/html":       ".html",
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
}

// ContentKey derives the storage key for data: the blake2b-256 digest,
// fanned out by its first byte, with an extension for the content type.
// Identical uploads map onto the same key.
func ContentKey(data []byte, contentType string) string {
	sum := blake2b.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	return digest[:2] + "/" + digest + extensionFor(contentType)
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// parseRef splits a reference into scheme, host and path and checks the
// scheme
func parseRef(ref, scheme string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse blob reference: %w", err)
	}
	if u.Scheme != scheme {
		return nil, fmt.Errorf("%w: %s", ErrForeignRef, ref)
	}
	if strings.Contains(u.Path, "..") {
		return nil, fmt.Errorf("%w: %s", ErrForeignRef, ref)
	}
	return u, nil
}

// Package blobstore abstracts physical file persistence for worklog
// attachments. Implementations persist uploaded bytes under freshly
// generated names and resolve opaque storage paths for streaming downloads.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoreResult describes one persisted blob.
type StoreResult struct {
	// StoredName is the generated file name, extension preserved.
	StoredName string
	// StoragePath is the opaque locator usable with the other operations.
	StoragePath string
	// SizeBytes is the number of bytes written.
	SizeBytes int64
}

// BlobStore is the byte-storage capability used by the attachment manager.
//
// All operations touch persistent storage outside any database transaction;
// callers own the resulting consistency policy.
type BlobStore interface {
	// Store persists content under a freshly generated unique name carrying
	// suggestedExt. A name collision with an existing blob is a fatal
	// configuration error, never a silent overwrite.
	Store(ctx context.Context, content io.Reader, suggestedExt string) (StoreResult, error)

	// Exists reports whether a blob is present at storagePath.
	Exists(ctx context.Context, storagePath string) (bool, error)

	// Delete removes the blob at storagePath. Deleting a non-existent path
	// is not an error and returns false.
	Delete(ctx context.Context, storagePath string) (bool, error)

	// ResolveForStreaming returns an absolute location for a download
	// response: a filesystem path for local storage, a presigned URL for
	// object storage.
	ResolveForStreaming(ctx context.Context, storagePath string) (string, error)
}

// GenerateStoredName combines a random token with a coarse timestamp,
// preserving the suggested extension. The uuid carries the uniqueness
// guarantee; the timestamp keeps names loosely sortable.
func GenerateStoredName(suggestedExt string) string {
	ext := strings.ToLower(strings.TrimSpace(suggestedExt))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s_%d%s", uuid.NewString(), time.Now().Unix(), ext)
}

package models

import (
	"fmt"
	"io"
	"time"
)

// Attachment describes one file bound to a worklog. The bytes themselves
// live in blob storage under StoragePath; this row only carries metadata.
type Attachment struct {
	ID int64
	// WorklogID links the attachment to its parent worklog. Immutable.
	WorklogID int64
	// StoredName is the generated, collision-resistant name the blob was
	// saved under. It preserves the original file extension.
	StoredName string
	// OriginalName is the user-supplied filename, kept for display and
	// download only. It is untrusted and never used as a storage path.
	OriginalName string
	// StoragePath is the opaque locator returned by the blob store.
	StoragePath string
	// SizeBytes is the upload size as reported by the caller.
	SizeBytes int64
	// MimeType is the type reported by the upload, not verified against
	// content.
	MimeType string

	CreatedAt time.Time
	UpdatedAt time.Time
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// HumanReadableSize formats SizeBytes with base-1024 unit suffixes.
// The value is divided by 1024 while it exceeds 1024 and a larger unit
// remains, then rounded to two decimal places.
func (a *Attachment) HumanReadableSize() string {
	return FormatSize(a.SizeBytes)
}

// FormatSize renders a byte count in human-readable form, e.g.
// 2000000 -> "1.91 MB". Values of 1024 or less keep the B suffix.
func FormatSize(sizeBytes int64) string {
	size := float64(sizeBytes)
	i := 0
	for size > 1024 && i < len(sizeUnits)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", sizeBytes, sizeUnits[0])
	}
	return fmt.Sprintf("%.2f %s", size, sizeUnits[i])
}

// UploadedFile is the validated upload descriptor handed over by the
// request boundary.
type UploadedFile struct {
	// Content streams the uploaded bytes.
	Content io.Reader
	// OriginalName is the client-supplied filename.
	OriginalName string
	// SizeBytes is the declared upload size.
	SizeBytes int64
	// MimeType is the declared content type.
	MimeType string
}

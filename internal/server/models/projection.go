package models

import "time"

// WorklogProjection is the serializable worklog+files shape consumed by the
// presentation layer.
type WorklogProjection struct {
	ID        int64                  `json:"id"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	LogDate   string                 `json:"logDate"`
	OwnerID   string                 `json:"ownerId"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
	Files     []AttachmentProjection `json:"files"`
}

// AttachmentProjection is the serializable attachment shape, including the
// derived human-readable size.
type AttachmentProjection struct {
	ID                int64     `json:"id"`
	StoredName        string    `json:"storedName"`
	OriginalName      string    `json:"originalName"`
	StoragePath       string    `json:"storagePath"`
	SizeBytes         int64     `json:"sizeBytes"`
	MimeType          string    `json:"mimeType"`
	WorklogID         int64     `json:"worklogId"`
	HumanReadableSize string    `json:"humanReadableSize"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Project converts a worklog and its loaded attachments into the output
// shape.
func (w *Worklog) Project() WorklogProjection {
	files := make([]AttachmentProjection, 0, len(w.Attachments))
	for i := range w.Attachments {
		files = append(files, w.Attachments[i].Project())
	}
	return WorklogProjection{
		ID:        w.ID,
		Title:     w.Title,
		Content:   w.Content,
		LogDate:   w.LogDate.Format(DateOnly),
		OwnerID:   w.OwnerID,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
		Files:     files,
	}
}

// Project converts an attachment into the output shape.
func (a *Attachment) Project() AttachmentProjection {
	return AttachmentProjection{
		ID:                a.ID,
		StoredName:        a.StoredName,
		OriginalName:      a.OriginalName,
		StoragePath:       a.StoragePath,
		SizeBytes:         a.SizeBytes,
		MimeType:          a.MimeType,
		WorklogID:         a.WorklogID,
		HumanReadableSize: a.HumanReadableSize(),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

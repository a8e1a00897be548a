// Package models defines server-side data models persisted in the database.
package models

import "time"

// Worklog is a dated journal entry owned by exactly one user.
type Worklog struct {
	// ID is assigned by the database at creation and never changes.
	ID int64
	// OwnerID identifies the owning principal. Immutable after creation.
	OwnerID string
	// Title is a short, non-empty summary (at most 255 characters).
	Title string
	// Content is the free-text body.
	Content string
	// LogDate is the calendar date the entry is about. The time component
	// is not significant; comparisons happen on the date only.
	LogDate time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Attachments are the files bound to this worklog, loaded on read paths.
	Attachments []Attachment
}

// CreateWorklogFields is the typed field set accepted by create. Unknown
// fields cannot reach the record because there is no map-based assignment.
type CreateWorklogFields struct {
	Title   string
	Content string
	LogDate time.Time
}

// UpdateWorklogFields is the typed field set accepted by update.
type UpdateWorklogFields struct {
	Title   string
	Content string
	LogDate time.Time
}

// DateOnly is the wire format for log dates.
const DateOnly = "2006-01-02"

package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/worklog/internal/common"
	"github.com/dmitrijs2005/worklog/internal/server/models"
	"github.com/dmitrijs2005/worklog/internal/server/repositories/worklogs"
)

func logDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWorklogCreate_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := NewWorklogService(db, &fakeRepoManager{}, nil, &fakeBlobStore{}, &captureLogger{})
	ctx := context.Background()

	cases := []struct {
		name    string
		ownerID string
		fields  models.CreateWorklogFields
	}{
		{"missing owner", "", models.CreateWorklogFields{Title: "T", Content: "c", LogDate: logDate(2025, 8, 19)}},
		{"missing title", "u1", models.CreateWorklogFields{Content: "c", LogDate: logDate(2025, 8, 19)}},
		{"blank title", "u1", models.CreateWorklogFields{Title: "   ", Content: "c", LogDate: logDate(2025, 8, 19)}},
		{"title too long", "u1", models.CreateWorklogFields{Title: strings.Repeat("x", 256), Content: "c", LogDate: logDate(2025, 8, 19)}},
		{"missing content", "u1", models.CreateWorklogFields{Title: "T", LogDate: logDate(2025, 8, 19)}},
		{"missing log date", "u1", models.CreateWorklogFields{Title: "T", Content: "c"}},
	}
	for _, c := range cases {
		if _, err := s.Create(ctx, c.ownerID, c.fields, nil); !errors.Is(err, common.ErrValidation) {
			t.Errorf("%s: want ErrValidation, got %v", c.name, err)
		}
	}
}

func TestWorklogCreate_WithAttachments(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	attachRepo := &fakeAttachmentsRepo{}
	m := &fakeRepoManager{w: &fakeWorklogsRepo{}, a: attachRepo}
	bs := &fakeBlobStore{}
	am := NewAttachmentManager(m, bs, &captureLogger{})
	s := NewWorklogService(db, m, am, bs, &captureLogger{})

	fields := models.CreateWorklogFields{
		Title:   "Test Worklog",
		Content: "wrote the quarterly report",
		LogDate: logDate(2025, 8, 19),
	}
	files := []models.UploadedFile{upload("report.pdf", "application/pdf", 2000)}

	got, err := s.Create(context.Background(), "u1", fields, files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 1 || got.OwnerID != "u1" || got.Title != "Test Worklog" {
		t.Fatalf("unexpected worklog: %+v", got)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("want 1 attachment, got %+v", got.Attachments)
	}
	a := got.Attachments[0]
	if a.OriginalName != "report.pdf" || a.SizeBytes != 2000 {
		t.Fatalf("unexpected attachment: %+v", a)
	}
	if a.HumanReadableSize() != "1.95 KB" {
		t.Fatalf("unexpected human size: %q", a.HumanReadableSize())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestWorklogCreate_NoFiles(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	m := &fakeRepoManager{w: &fakeWorklogsRepo{}, a: &fakeAttachmentsRepo{}}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	got, err := s.Create(context.Background(), "u1", models.CreateWorklogFields{
		Title: "T", Content: "c", LogDate: logDate(2025, 8, 19),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Attachments == nil || len(got.Attachments) != 0 {
		t.Fatalf("want empty non-nil attachments, got %#v", got.Attachments)
	}
}

func TestWorklogCreate_AttachFailureRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	bs := &fakeBlobStore{failStoreAt: 2}
	attachRepo := &fakeAttachmentsRepo{}
	m := &fakeRepoManager{w: &fakeWorklogsRepo{}, a: attachRepo}
	am := NewAttachmentManager(m, bs, &captureLogger{})
	s := NewWorklogService(db, m, am, bs, &captureLogger{})

	files := []models.UploadedFile{
		upload("one.pdf", "application/pdf", 1),
		upload("two.pdf", "application/pdf", 1),
		upload("three.pdf", "application/pdf", 1),
	}
	_, err := s.Create(context.Background(), "u1", models.CreateWorklogFields{
		Title: "T", Content: "c", LogDate: logDate(2025, 8, 19),
	}, files)
	if err == nil || !strings.Contains(err.Error(), "store attachment") {
		t.Fatalf("want store failure, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("transaction was not rolled back: %v", err)
	}
}

func TestWorklogCreate_RepoErrorRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	m := &fakeRepoManager{w: &fakeWorklogsRepo{createErr: errBoom{}}, a: &fakeAttachmentsRepo{}}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	_, err := s.Create(context.Background(), "u1", models.CreateWorklogFields{
		Title: "T", Content: "c", LogDate: logDate(2025, 8, 19),
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "create worklog:") {
		t.Fatalf("want wrapped create error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestWorklogUpdate_NotOwned(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := &fakeRepoManager{w: &fakeWorklogsRepo{byOwnerErr: common.ErrNotFound}, a: &fakeAttachmentsRepo{}}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	_, err := s.Update(context.Background(), 5, "intruder", models.UpdateWorklogFields{
		Title: "T", Content: "c", LogDate: logDate(2025, 8, 20),
	}, nil, nil)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestWorklogUpdate_RemovesBeforeAdds(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	ops := &opsLog{}
	bs := &fakeBlobStore{ops: ops}
	attachRepo := &fakeAttachmentsRepo{
		ops:   ops,
		byIDs: []models.Attachment{{ID: 1, WorklogID: 5, StoragePath: "worklog-files/old.pdf"}},
		byWorklog: []models.Attachment{
			{ID: 2, WorklogID: 5, OriginalName: "new.pdf", StoragePath: "worklog-files/blob-1.pdf"},
		},
	}
	m := &fakeRepoManager{
		w: &fakeWorklogsRepo{byOwner: &models.Worklog{ID: 5, OwnerID: "u1"}},
		a: attachRepo,
	}
	am := NewAttachmentManager(m, bs, &captureLogger{})
	s := NewWorklogService(db, m, am, bs, &captureLogger{})

	got, err := s.Update(context.Background(), 5, "u1", models.UpdateWorklogFields{
		Title: "Edited", Content: "new content", LogDate: logDate(2025, 8, 20),
	}, []models.UploadedFile{upload("new.pdf", "application/pdf", 100)}, []int64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Edited" {
		t.Fatalf("fields not updated: %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].OriginalName != "new.pdf" {
		t.Fatalf("attachments not reloaded: %+v", got.Attachments)
	}

	want := []string{
		"blob-delete:worklog-files/old.pdf", "row-delete:1",
		"store:worklog-files/blob-1.pdf", "row-create:worklog-files/blob-1.pdf",
	}
	if len(ops.entries) != len(want) {
		t.Fatalf("unexpected ops: %v", ops.entries)
	}
	for i := range want {
		if ops.entries[i] != want[i] {
			t.Fatalf("op %d = %q, want %q (all: %v)", i, ops.entries[i], want[i], ops.entries)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestWorklogUpdate_UpdateErrorRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	m := &fakeRepoManager{
		w: &fakeWorklogsRepo{byOwner: &models.Worklog{ID: 5, OwnerID: "u1"}, updateErr: errBoom{}},
		a: &fakeAttachmentsRepo{},
	}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	_, err := s.Update(context.Background(), 5, "u1", models.UpdateWorklogFields{
		Title: "T", Content: "c", LogDate: logDate(2025, 8, 20),
	}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "update worklog:") {
		t.Fatalf("want wrapped update error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestWorklogDelete_CascadesAttachments(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	bs := &fakeBlobStore{}
	attachRepo := &fakeAttachmentsRepo{
		byWorklog: []models.Attachment{
			{ID: 1, WorklogID: 5, StoragePath: "worklog-files/a.pdf"},
			{ID: 2, WorklogID: 5, StoragePath: "worklog-files/b.png"},
			{ID: 3, WorklogID: 5, StoragePath: "worklog-files/c.zip"},
		},
	}
	worklogRepo := &fakeWorklogsRepo{byOwner: &models.Worklog{ID: 5, OwnerID: "u1"}}
	m := &fakeRepoManager{w: worklogRepo, a: attachRepo}
	am := NewAttachmentManager(m, bs, &captureLogger{})
	s := NewWorklogService(db, m, am, bs, &captureLogger{})

	if err := s.Delete(context.Background(), 5, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bs.deleted) != 3 || len(attachRepo.deletedIDs) != 3 {
		t.Fatalf("cascade incomplete: blobs=%v rows=%v", bs.deleted, attachRepo.deletedIDs)
	}
	if len(worklogRepo.deletedIDs) != 1 || worklogRepo.deletedIDs[0] != 5 {
		t.Fatalf("worklog row not deleted: %v", worklogRepo.deletedIDs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestWorklogDelete_NotOwned(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := &fakeRepoManager{w: &fakeWorklogsRepo{byOwnerErr: common.ErrNotFound}, a: &fakeAttachmentsRepo{}}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	if err := s.Delete(context.Background(), 5, "intruder"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestWorklogGet_LoadsAttachments(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := &fakeRepoManager{
		w: &fakeWorklogsRepo{byOwner: &models.Worklog{ID: 5, OwnerID: "u1", Title: "T"}},
		a: &fakeAttachmentsRepo{byWorklog: []models.Attachment{{ID: 1, WorklogID: 5}}},
	}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	got, err := s.Get(context.Background(), 5, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 5 || len(got.Attachments) != 1 {
		t.Fatalf("unexpected worklog: %+v", got)
	}
}

func TestWorklogList_RequiresOwner(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := NewWorklogService(db, &fakeRepoManager{}, nil, &fakeBlobStore{}, &captureLogger{})
	if _, err := s.List(context.Background(), "  ", worklogs.Filters{}, 1); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestWorklogList_LoadsAttachmentsPerItem(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	page := &worklogs.Page{
		Items: []*models.Worklog{
			{ID: 1, OwnerID: "u1"},
			{ID: 2, OwnerID: "u1"},
		},
		TotalCount: 2, Number: 1, Size: worklogs.PageSize, TotalPages: 1,
	}
	m := &fakeRepoManager{
		w: &fakeWorklogsRepo{page: page},
		a: &fakeAttachmentsRepo{byWorklog: []models.Attachment{{ID: 9}}},
	}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	got, err := s.List(context.Background(), "u1", worklogs.Filters{}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	for _, item := range got.Items {
		if len(item.Attachments) != 1 {
			t.Fatalf("attachments not loaded for item %d", item.ID)
		}
	}
}

func TestWorklogRecent_RequiresOwner(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := NewWorklogService(db, &fakeRepoManager{}, nil, &fakeBlobStore{}, &captureLogger{})
	if _, err := s.Recent(context.Background(), "  "); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestWorklogRecent_LoadsAttachmentsWithCap(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	w := &fakeWorklogsRepo{
		recent: []*models.Worklog{
			{ID: 3, OwnerID: "u1"},
			{ID: 2, OwnerID: "u1"},
			{ID: 1, OwnerID: "u1"},
		},
	}
	m := &fakeRepoManager{
		w: w,
		a: &fakeAttachmentsRepo{byWorklog: []models.Attachment{{ID: 9}}},
	}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	got, err := s.Recent(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.recentLimit != RecentWorklogsLimit {
		t.Fatalf("unexpected limit: %d", w.recentLimit)
	}
	if len(got) != 3 || got[0].ID != 3 {
		t.Fatalf("unexpected items: %+v", got)
	}
	for _, item := range got {
		if len(item.Attachments) != 1 {
			t.Fatalf("attachments not loaded for item %d", item.ID)
		}
	}
}

func TestWorklogRecent_EmptyForNewOwner(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := &fakeRepoManager{
		w: &fakeWorklogsRepo{recent: []*models.Worklog{}},
		a: &fakeAttachmentsRepo{},
	}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	got, err := s.Recent(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unexpected items: %+v", got)
	}
}

func TestWorklogLifecycle_CreateThenUpdateScenario(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	bs := &fakeBlobStore{}
	attachRepo := &fakeAttachmentsRepo{}
	worklogRepo := &fakeWorklogsRepo{}
	m := &fakeRepoManager{w: worklogRepo, a: attachRepo}
	am := NewAttachmentManager(m, bs, &captureLogger{})
	s := NewWorklogService(db, m, am, bs, &captureLogger{})
	ctx := context.Background()

	created, err := s.Create(ctx, "u1", models.CreateWorklogFields{
		Title:   "Test Worklog",
		Content: "This is a test worklog content.",
		LogDate: logDate(2025, 8, 19),
	}, nil)
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if created.ID == 0 || created.OwnerID != "u1" || len(created.Attachments) != 0 {
		t.Fatalf("unexpected created worklog: %+v", created)
	}

	mock.ExpectBegin()
	mock.ExpectCommit()

	worklogRepo.byOwner = created
	attachRepo.byWorklog = []models.Attachment{
		{ID: 1, WorklogID: created.ID, OriginalName: "report.pdf", SizeBytes: 2000},
	}

	updated, err := s.Update(ctx, created.ID, "u1", models.UpdateWorklogFields{
		Title:   "Updated Title",
		Content: created.Content,
		LogDate: created.LogDate,
	}, []models.UploadedFile{upload("report.pdf", "application/pdf", 2000)}, nil)
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.Title != "Updated Title" {
		t.Fatalf("title not updated: %+v", updated)
	}
	if len(updated.Attachments) != 1 ||
		updated.Attachments[0].OriginalName != "report.pdf" ||
		updated.Attachments[0].SizeBytes != 2000 {
		t.Fatalf("unexpected attachments: %+v", updated.Attachments)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestResolveDownload_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	bs := &fakeBlobStore{existing: map[string]bool{"worklog-files/a.pdf": true}}
	m := &fakeRepoManager{
		w: &fakeWorklogsRepo{},
		a: &fakeAttachmentsRepo{forOwner: &models.Attachment{
			ID: 3, WorklogID: 5, OriginalName: "report.pdf", StoragePath: "worklog-files/a.pdf",
		}},
	}
	am := NewAttachmentManager(m, bs, &captureLogger{})
	s := NewWorklogService(db, m, am, bs, &captureLogger{})

	got, err := s.ResolveDownload(context.Background(), 3, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Location != "/abs/worklog-files/a.pdf" || got.SuggestedFilename != "report.pdf" {
		t.Fatalf("unexpected resolution: %+v", got)
	}
}

func TestResolveDownload_MissingBlobIsNotFound(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	log := &captureLogger{}
	bs := &fakeBlobStore{} // blob absent
	m := &fakeRepoManager{
		w: &fakeWorklogsRepo{},
		a: &fakeAttachmentsRepo{forOwner: &models.Attachment{
			ID: 3, WorklogID: 5, OriginalName: "report.pdf", StoragePath: "worklog-files/gone.pdf",
		}},
	}
	am := NewAttachmentManager(m, bs, log)
	s := NewWorklogService(db, m, am, bs, log)

	_, err := s.ResolveDownload(context.Background(), 3, "u1")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if len(log.warns) != 1 {
		t.Fatalf("expected a warning for the dangling row, got %v", log.warns)
	}
}

func TestResolveDownload_ForeignOwner(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	m := &fakeRepoManager{w: &fakeWorklogsRepo{}, a: &fakeAttachmentsRepo{forOwnerErr: common.ErrNotFound}}
	am := NewAttachmentManager(m, &fakeBlobStore{}, &captureLogger{})
	s := NewWorklogService(db, m, am, &fakeBlobStore{}, &captureLogger{})

	if _, err := s.ResolveDownload(context.Background(), 3, "intruder"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

package httpapi

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/worklog/internal/common"
	"github.com/dmitrijs2005/worklog/internal/server/models"
	"github.com/dmitrijs2005/worklog/internal/server/repositories/worklogs"
	"github.com/dmitrijs2005/worklog/internal/server/services"
)

// maxFormMemory bounds the in-memory part of multipart parsing; larger file
// parts spill to temp files.
const maxFormMemory = 32 << 20

type listResponse struct {
	Worklogs   []models.WorklogProjection `json:"worklogs"`
	TotalCount int                        `json:"totalCount"`
	Page       int                        `json:"page"`
	PageSize   int                        `json:"pageSize"`
	TotalPages int                        `json:"totalPages"`
	Filters    listFilters                `json:"filters"`
}

type listFilters struct {
	Search   string `json:"search,omitempty"`
	FromDate string `json:"fromDate,omitempty"`
	ToDate   string `json:"toDate,omitempty"`
}

type dashboardResponse struct {
	RecentWorklogs []models.WorklogProjection `json:"recentWorklogs"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, ownerID string) {
	items, err := s.service.Recent(r.Context(), ownerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	recent := make([]models.WorklogProjection, 0, len(items))
	for _, item := range items {
		recent = append(recent, item.Project())
	}
	writeJSON(w, http.StatusOK, dashboardResponse{RecentWorklogs: recent})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, ownerID string) {
	q := r.URL.Query()

	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "invalid page number")
			return
		}
		page = n
	}

	var f worklogs.Filters
	f.Search = q.Get("search")
	for _, p := range []struct {
		key  string
		dest **time.Time
	}{
		{"from_date", &f.FromDate},
		{"to_date", &f.ToDate},
	} {
		if raw := q.Get(p.key); raw != "" {
			d, err := time.Parse(models.DateOnly, raw)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", p.key))
				return
			}
			*p.dest = &d
		}
	}

	result, err := s.service.List(r.Context(), ownerID, f, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := make([]models.WorklogProjection, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, item.Project())
	}

	resp := listResponse{
		Worklogs:   items,
		TotalCount: result.TotalCount,
		Page:       result.Number,
		PageSize:   result.Size,
		TotalPages: result.TotalPages,
		Filters:    listFilters{Search: f.Search, FromDate: q.Get("from_date"), ToDate: q.Get("to_date")},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, ownerID string) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid worklog id")
		return
	}

	worklog, err := s.service.Get(r.Context(), id, ownerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worklog.Project())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, ownerID string) {
	form, cleanup, err := parseWorklogForm(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanup()

	worklog, err := s.service.Create(r.Context(), ownerID, models.CreateWorklogFields{
		Title:   form.title,
		Content: form.content,
		LogDate: form.logDate,
	}, form.files)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, worklog.Project())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, ownerID string) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid worklog id")
		return
	}

	form, cleanup, err := parseWorklogForm(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanup()

	worklog, err := s.service.Update(r.Context(), id, ownerID, models.UpdateWorklogFields{
		Title:   form.title,
		Content: form.content,
		LogDate: form.logDate,
	}, form.files, form.removeFileIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worklog.Project())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, ownerID string) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid worklog id")
		return
	}

	if err := s.service.Delete(r.Context(), id, ownerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, ownerID string) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	res, err := s.service.ResolveDownload(r.Context(), id, ownerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Object storage resolves to a presigned URL; local storage to a path.
	if strings.HasPrefix(res.Location, "http://") || strings.HasPrefix(res.Location, "https://") {
		http.Redirect(w, r, res.Location, http.StatusFound)
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", res.SuggestedFilename))
	http.ServeFile(w, r, res.Location)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// worklogForm is the parsed multipart payload shared by create and update.
type worklogForm struct {
	title         string
	content       string
	logDate       time.Time
	files         []models.UploadedFile
	removeFileIDs []int64
}

// parseWorklogForm validates the request shape. The service re-applies the
// same file policy; rejecting here keeps bad requests out of the transaction.
func parseWorklogForm(r *http.Request) (*worklogForm, func(), error) {
	noop := func() {}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, noop, fmt.Errorf("%w: expected multipart form data", common.ErrValidation)
	}

	form := &worklogForm{
		title:   r.FormValue("title"),
		content: r.FormValue("content"),
	}
	if strings.TrimSpace(form.title) == "" {
		return nil, noop, fmt.Errorf("%w: a title is required", common.ErrValidation)
	}
	if len(form.title) > 255 {
		return nil, noop, fmt.Errorf("%w: the title may not be greater than 255 characters", common.ErrValidation)
	}
	if strings.TrimSpace(form.content) == "" {
		return nil, noop, fmt.Errorf("%w: please provide content", common.ErrValidation)
	}

	rawDate := r.FormValue("log_date")
	if rawDate == "" {
		return nil, noop, fmt.Errorf("%w: please select a log date", common.ErrValidation)
	}
	logDate, err := time.Parse(models.DateOnly, rawDate)
	if err != nil {
		return nil, noop, fmt.Errorf("%w: please provide a valid date", common.ErrValidation)
	}
	form.logDate = logDate

	for _, raw := range r.MultipartForm.Value["remove_files"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: invalid attachment id %q", common.ErrValidation, raw)
		}
		form.removeFileIDs = append(form.removeFileIDs, id)
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) > services.MaxFilesPerRequest {
		return nil, noop, fmt.Errorf("%w: you may not upload more than %d files at once",
			common.ErrValidation, services.MaxFilesPerRequest)
	}

	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, fh := range headers {
		if fh.Size > services.MaxFileSizeBytes {
			cleanup()
			return nil, noop, fmt.Errorf("%w: each file may not be larger than 10MB", common.ErrValidation)
		}
		if !services.ExtensionAllowed(fh.Filename) {
			cleanup()
			return nil, noop, fmt.Errorf("%w: file type of %q is not supported", common.ErrValidation, fh.Filename)
		}

		f, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("open uploaded file %q: %w", fh.Filename, err)
		}
		opened = append(opened, f)

		form.files = append(form.files, models.UploadedFile{
			Content:      f,
			OriginalName: fh.Filename,
			SizeBytes:    fh.Size,
			MimeType:     fh.Header.Get("Content-Type"),
		})
	}

	return form, cleanup, nil
}

package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileKey, ok := fileKeyParam(r)
	if !ok {
		writeValidation(w, "file_key is required")
		return
	}

	record, err := h.fileService.GetFile(r.Context(), fileKey)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, record)
}

func (h *Handler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	fileKey, ok := fileKeyParam(r)
	if !ok {
		writeValidation(w, "file_key is required")
		return
	}

	expiresIn, err := getInt64QueryParam(r, "expires_in")
	if err != nil {
		writeValidation(w, err.Error())
		return
	}

	resp, err := h.fileService.GetDownloadURL(r.Context(), fileKey, expiresIn, r.URL.Query().Get("filename"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requester(w, r)
	if !ok {
		return
	}

	fileKey, ok := fileKeyParam(r)
	if !ok {
		writeValidation(w, "file_key is required")
		return
	}

	resp, err := h.deleteService.DeleteFile(r.Context(), fileKey, requester)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requester(w, r)
	if !ok {
		return
	}

	var req models.BulkDeleteRequest
	if details := decodeJSON(r, &req); details != nil {
		writeValidation(w, details...)
		return
	}

	resp, err := h.deleteService.BulkDelete(r.Context(), req.FileKeys, requester)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	h.listFiles(w, r, "")
}

func (h *Handler) ListCaseFiles(w http.ResponseWriter, r *http.Request) {
	h.listFiles(w, r, chi.URLParam(r, "case_id"))
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request, caseID string) {
	filter, details := parseFileFilter(r)
	if details != nil {
		writeValidation(w, details...)
		return
	}
	if caseID != "" {
		filter.CaseID = caseID
	}

	resp, err := h.fileService.ListFiles(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) GetFileStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.fileService.GetFileStats(r.Context(), r.URL.Query().Get("case_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, stats)
}

func (h *Handler) GetCaseFileStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.fileService.GetCaseFileStats(r.Context(), chi.URLParam(r, "case_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, stats)
}

func parseFileFilter(r *http.Request) (models.FileFilter, []string) {
	q := r.URL.Query()
	filter := models.FileFilter{
		CaseID:     q.Get("case_id"),
		Search:     q.Get("search"),
		UploadedBy: q.Get("uploaded_by"),
		SessionID:  q.Get("session_id"),
		Codec:      q.Get("codec"),
		SortBy:     q.Get("sort_by"),
		SortOrder:  q.Get("sort_order"),
	}

	var details []string
	filter.Page, filter.Limit, details = getPageParams(r)
	for _, s := range getListQueryParam(r, "status") {
		filter.Statuses = append(filter.Statuses, models.FileStatus(s))
	}
	for _, c := range getListQueryParam(r, "capture_type") {
		filter.CaptureTypes = append(filter.CaptureTypes, models.CaptureType(c))
	}

	var err error
	if filter.MinDuration, err = getFloatQueryParam(r, "min_duration"); err != nil {
		details = append(details, err.Error())
	}
	if filter.MaxDuration, err = getFloatQueryParam(r, "max_duration"); err != nil {
		details = append(details, err.Error())
	}
	if filter.HasAudio, err = getBoolQueryParam(r, "has_audio"); err != nil {
		details = append(details, err.Error())
	}
	if filter.Width, err = getDimensionQueryParam(r, "width"); err != nil {
		details = append(details, err.Error())
	}
	if filter.Height, err = getDimensionQueryParam(r, "height"); err != nil {
		details = append(details, err.Error())
	}

	return filter, details
}

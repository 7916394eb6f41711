package httpd

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requester(w, r)
	if !ok {
		return
	}

	var req models.CreateCaseRequest
	if details := decodeJSON(r, &req); details != nil {
		writeValidation(w, details...)
		return
	}

	c, err := h.caseService.CreateCase(r.Context(), &req, requester)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, c)
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.caseService.GetCase(r.Context(), chi.URLParam(r, "case_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, c)
}

func (h *Handler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCaseRequest
	if details := decodeJSON(r, &req); details != nil {
		writeValidation(w, details...)
		return
	}

	patch := models.CasePatch{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		AssignedTo:  req.AssignedTo,
	}
	if req.Status != nil {
		status := models.CaseStatus(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := models.CasePriority(*req.Priority)
		patch.Priority = &priority
	}

	c, err := h.caseService.UpdateCase(r.Context(), chi.URLParam(r, "case_id"), patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, c)
}

func (h *Handler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requester(w, r)
	if !ok {
		return
	}

	caseID := chi.URLParam(r, "case_id")
	if err := h.caseService.DeleteCase(r.Context(), caseID, requester); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"case_id": caseID,
		"deleted": true,
	})
}

func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	filter, details := parseCaseFilter(r)
	if details != nil {
		writeValidation(w, details...)
		return
	}

	resp, err := h.caseService.ListCases(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

// ExportCases буферизует CSV, чтобы ошибка посередине не оставила обрезанный файл с кодом 200
func (h *Handler) ExportCases(w http.ResponseWriter, r *http.Request) {
	filter, details := parseCaseFilter(r)
	if details != nil {
		writeValidation(w, details...)
		return
	}

	var buf bytes.Buffer
	if err := h.caseService.ExportCases(r.Context(), filter, &buf); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	filename := fmt.Sprintf("cases-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) GetCaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.caseService.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, stats)
}

func (h *Handler) RebuildCaseMetadata(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requester(w, r)
	if !ok {
		return
	}

	resp, err := h.metadataService.Rebuild(r.Context(), chi.URLParam(r, "case_id"), requester)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func parseCaseFilter(r *http.Request) (models.CaseFilter, []string) {
	q := r.URL.Query()
	filter := models.CaseFilter{
		Tags:       getListQueryParam(r, "tags"),
		Search:     q.Get("search"),
		AssignedTo: q.Get("assigned_to"),
		CreatedBy:  q.Get("created_by"),
		SortBy:     q.Get("sort_by"),
		SortOrder:  q.Get("sort_order"),
	}

	var details []string
	filter.Page, filter.Limit, details = getPageParams(r)
	for _, s := range getListQueryParam(r, "status") {
		if !models.IsValidCaseStatus(s) {
			details = append(details, fmt.Sprintf("status %q is not valid", s))
			continue
		}
		filter.Statuses = append(filter.Statuses, models.CaseStatus(s))
	}
	for _, p := range getListQueryParam(r, "priority") {
		if !models.IsValidCasePriority(p) {
			details = append(details, fmt.Sprintf("priority %q is not valid", p))
			continue
		}
		filter.Priorities = append(filter.Priorities, models.CasePriority(p))
	}

	var err error
	if filter.CreatedAfter, err = getTimeQueryParam(r, "created_after"); err != nil {
		details = append(details, err.Error())
	}
	if filter.CreatedBefore, err = getTimeQueryParam(r, "created_before"); err != nil {
		details = append(details, err.Error())
	}

	return filter, details
}

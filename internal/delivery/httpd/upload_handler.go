package httpd

import (
	"net/http"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

// IssueUploadSlot не проверяет поля сам: сервис собирает все нарушения разом
func (h *Handler) IssueUploadSlot(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requester(w, r)
	if !ok {
		return
	}

	var req models.IssueUploadSlotRequest
	if details := decodeJSON(r, &req); details != nil {
		writeValidation(w, details...)
		return
	}

	slot, err := h.uploadService.IssueUploadSlot(r.Context(), &req, requester)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, slot)
}

func (h *Handler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requester(w, r); !ok {
		return
	}

	var req models.ConfirmUploadRequest
	if details := decodeJSON(r, &req); details != nil {
		writeValidation(w, details...)
		return
	}

	resp, err := h.uploadService.ConfirmUpload(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if resp.Warning != "" {
		h.logger.Warn().
			Str("file_key", resp.File.FileKey).
			Str("case_id", resp.File.CaseID).
			Str("warning", resp.Warning).
			Msg("Upload confirmed with reconciliation warning")
	}

	writeSuccess(w, http.StatusOK, resp)
}

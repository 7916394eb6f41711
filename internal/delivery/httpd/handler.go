package httpd

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/middleware"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service"
)

// ReadinessCheck - зависимость, без которой сервис не принимает трафик
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handler struct {
	caseService     service.CaseService
	fileService     service.FileService
	uploadService   service.UploadService
	deleteService   service.DeleteService
	metadataService service.MetadataService
	checks          []ReadinessCheck
	logger          zerolog.Logger
}

func NewHandler(
	caseService service.CaseService,
	fileService service.FileService,
	uploadService service.UploadService,
	deleteService service.DeleteService,
	metadataService service.MetadataService,
	checks []ReadinessCheck,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		caseService:     caseService,
		fileService:     fileService,
		uploadService:   uploadService,
		deleteService:   deleteService,
		metadataService: metadataService,
		checks:          checks,
		logger:          logger,
	}
}

// RegisterRoutes вешает health без авторизации, API - за auth.
func (h *Handler) RegisterRoutes(router chi.Router, auth func(http.Handler) http.Handler) {
	router.Get("/health", h.HealthCheck)
	router.Get("/ready", h.ReadyCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Use(auth)

		api.Route("/cases", func(r chi.Router) {
			r.Post("/", h.CreateCase)
			r.Get("/", h.ListCases)
			r.Get("/stats", h.GetCaseStats)
			r.Get("/export", h.ExportCases)

			r.Route("/{case_id}", func(r chi.Router) {
				r.Get("/", h.GetCase)
				r.Patch("/", h.UpdateCase)
				r.Delete("/", h.DeleteCase)
				r.Get("/files", h.ListCaseFiles)
				r.Get("/stats", h.GetCaseFileStats)
				r.Post("/metadata/rebuild", h.RebuildCaseMetadata)
			})
		})

		api.Route("/uploads", func(r chi.Router) {
			r.Post("/slots", h.IssueUploadSlot)
			r.Post("/confirm", h.ConfirmUpload)
		})

		api.Route("/files", func(r chi.Router) {
			r.Get("/", h.ListFiles)
			r.Get("/stats", h.GetFileStats)
			r.Post("/bulk-delete", h.BulkDelete)
			r.Get("/{file_key}/url", h.GetDownloadURL)
			r.Get("/{file_key}", h.GetFile)
			r.Delete("/{file_key}", h.DeleteFile)
		})
	})
}

func (h *Handler) requester(w http.ResponseWriter, r *http.Request) (models.Requester, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return models.Requester{}, false
	}
	return identity.Requester(), true
}

// fileKeyParam: ключ содержит "/", клиент передает его URL-экранированным
func fileKeyParam(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "file_key")
	key, err := url.PathUnescape(raw)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

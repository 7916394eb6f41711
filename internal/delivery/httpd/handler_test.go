package httpd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/middleware"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository/memory"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service/integration"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

type testServer struct {
	router  http.Handler
	storage *memory.ObjectStorage
	ready   error
}

// headerAuth подменяет JWT: роль и id берутся из заголовков
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User")
		if id == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		role := r.Header.Get("X-Role")
		if role == "" {
			role = models.RoleUser
		}
		identity := middleware.Identity{ID: id, Username: id, Role: role}
		next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), identity)))
	})
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := zerolog.Nop()
	files := memory.NewFileRepository()
	cases := memory.NewCaseRepository(files)
	storage := memory.NewObjectStorage("http://storage.local/evidence")
	cfg := service.UploadConfig{
		AllowedTypes:     []string{"image/png", "video/webm"},
		MaxFileSize:      10 * 1024 * 1024,
		DefaultURLExpiry: time.Hour,
		MinURLExpiry:     time.Minute,
		MaxURLExpiry:     24 * time.Hour,
		MaxBulkKeys:      10,
	}

	metadata := service.NewMetadataService(cases, files, integration.NewNoopPublisher(), nil, log)
	ts := &testServer{storage: storage}
	h := NewHandler(
		service.NewCaseService(cases, files, storage, nil, nil, log),
		service.NewFileService(cases, files, storage, nil, nil, log, cfg),
		service.NewUploadService(cases, files, storage, metadata, log, cfg),
		service.NewDeleteService(files, storage, metadata, nil, log, cfg.MaxBulkKeys),
		metadata,
		[]ReadinessCheck{{Name: "database", Check: func(context.Context) error { return ts.ready }}},
		log,
	)

	router := chi.NewRouter()
	h.RegisterRoutes(router, headerAuth)
	ts.router = router
	return ts
}

func (s *testServer) do(t *testing.T, method, path, user string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	if user == "sup" {
		req.Header.Set("X-Role", models.RoleSupervisor)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func (s *testServer) createCase(t *testing.T, user, title string) models.Case {
	t.Helper()

	rec, env := s.do(t, http.MethodPost, "/api/v1/cases", user, map[string]interface{}{"title": title})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create case: %d %s", rec.Code, rec.Body.String())
	}
	var c models.Case
	decodeData(t, env, &c)
	return c
}

func (s *testServer) upload(t *testing.T, user, caseID string, size int64) models.UploadSlotResponse {
	t.Helper()

	rec, env := s.do(t, http.MethodPost, "/api/v1/uploads/slots", user, map[string]interface{}{
		"case_id":      caseID,
		"file_name":    "shot.png",
		"file_type":    "image/png",
		"file_size":    size,
		"capture_type": "screenshot",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue slot: %d %s", rec.Code, rec.Body.String())
	}
	var slot models.UploadSlotResponse
	decodeData(t, env, &slot)

	s.storage.PutObject(slot.FileKey, size, "image/png")

	rec, _ = s.do(t, http.MethodPost, "/api/v1/uploads/confirm", user, map[string]interface{}{"file_id": slot.FileID})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}
	return slot
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t)

	if rec, _ := s.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodGet, "/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ready: %d", rec.Code)
	}

	s.ready = errors.New("connection refused")
	rec, _ := s.do(t, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "unavailable") {
		t.Fatalf("ready with failed db: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAPIRequiresIdentity(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/cases", "", nil)
	if rec.Code != http.StatusUnauthorized || env.Success {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestUploadFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	c := s.createCase(t, "alice", "Phishing")
	if c.DisplayID != "CASE-001" {
		t.Fatalf("display id = %s", c.DisplayID)
	}

	slot := s.upload(t, "alice", c.ID, 5*1024*1024)
	if slot.Method != models.UploadMethodPut || slot.UploadURL == "" {
		t.Fatalf("unexpected slot: %+v", slot)
	}

	rec, env := s.do(t, http.MethodGet, "/api/v1/cases/"+c.ID, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get case: %d", rec.Code)
	}
	var got models.Case
	decodeData(t, env, &got)
	if got.Metadata.TotalScreenshots != 1 || got.Metadata.TotalFileSize != 5*1024*1024 {
		t.Fatalf("metadata = %+v", got.Metadata)
	}

	escaped := url.PathEscape(slot.FileKey)
	rec, env = s.do(t, http.MethodGet, "/api/v1/files/"+escaped+"/url?expires_in=600", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download url: %d %s", rec.Code, rec.Body.String())
	}
	var dl models.DownloadURLResponse
	decodeData(t, env, &dl)
	if dl.FileKey != slot.FileKey || dl.ExpiresIn != 600 {
		t.Fatalf("download response = %+v", dl)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/files/"+escaped, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get file: %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/files/"+escaped, "bob", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign delete: %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/files/"+escaped, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/files/"+escaped, "alice", nil)
	if rec.Code != http.StatusNotFound || env.Error.Code != codeNotFound {
		t.Fatalf("deleted file: %d", rec.Code)
	}
}

func TestIssueSlotValidationListsEveryViolation(t *testing.T) {
	s := newTestServer(t)
	c := s.createCase(t, "alice", "Phishing")

	rec, env := s.do(t, http.MethodPost, "/api/v1/uploads/slots", "alice", map[string]interface{}{
		"case_id":      c.ID,
		"file_name":    "archive.zip",
		"file_type":    "application/zip",
		"capture_type": "screenshot",
	})
	if rec.Code != http.StatusBadRequest || env.Error.Code != codeValidation {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
	if len(env.Error.Details) == 0 || !strings.Contains(strings.Join(env.Error.Details, ";"), "application/zip") {
		t.Fatalf("details must name the rejected type: %v", env.Error.Details)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/uploads/slots", "alice", map[string]interface{}{
		"case_id":      "missing",
		"file_name":    "a.png",
		"file_type":    "image/png",
		"capture_type": "screenshot",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown case: %d", rec.Code)
	}
}

func TestConfirmMissingObjectIsConflict(t *testing.T) {
	s := newTestServer(t)
	c := s.createCase(t, "alice", "Phishing")

	_, env := s.do(t, http.MethodPost, "/api/v1/uploads/slots", "alice", map[string]interface{}{
		"case_id":      c.ID,
		"file_name":    "a.png",
		"file_type":    "image/png",
		"capture_type": "screenshot",
	})
	var slot models.UploadSlotResponse
	decodeData(t, env, &slot)

	rec, env := s.do(t, http.MethodPost, "/api/v1/uploads/confirm", "alice", map[string]interface{}{"file_id": slot.FileID})
	if rec.Code != http.StatusConflict || env.Error.Code != codeStorageMismatch {
		t.Fatalf("expected 409, got %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/uploads/confirm", "alice", map[string]interface{}{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty confirm: %d", rec.Code)
	}
}

func TestCaseCRUDOverHTTP(t *testing.T) {
	s := newTestServer(t)
	c := s.createCase(t, "alice", "Phishing")

	rec, env := s.do(t, http.MethodPatch, "/api/v1/cases/"+c.ID, "alice", map[string]interface{}{"priority": "critical"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}
	var updated models.Case
	decodeData(t, env, &updated)
	if updated.Priority != models.PriorityCritical || updated.Title != "Phishing" {
		t.Fatalf("updated = %+v", updated)
	}

	rec, _ = s.do(t, http.MethodPatch, "/api/v1/cases/"+c.ID, "alice", map[string]interface{}{"priority": "urgent"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid patch: %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/cases", "alice", map[string]interface{}{"title": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty title: %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/cases/"+c.ID, "bob", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign case delete: %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodDelete, "/api/v1/cases/"+c.ID, "sup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("supervisor case delete: %d", rec.Code)
	}
}

func TestListCasesPaginationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 45; i++ {
		s.createCase(t, "alice", "Case")
	}

	_, env := s.do(t, http.MethodGet, "/api/v1/cases?page=3&limit=20", "alice", nil)
	var page models.CaseListResponse
	decodeData(t, env, &page)
	if len(page.Cases) != 5 || page.Pagination.HasNext || !page.Pagination.HasPrev || page.Pagination.Total != 45 {
		t.Fatalf("page 3 = %d items, %+v", len(page.Cases), page.Pagination)
	}

	rec, _ := s.do(t, http.MethodGet, "/api/v1/cases?status=open", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status filter: %d", rec.Code)
	}
}

func TestPagingParamsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createCase(t, "alice", "Only")

	huge := strconv.Itoa(math.MaxInt / 50)
	rec, env := s.do(t, http.MethodGet, "/api/v1/cases?limit=100&page="+huge, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("huge page: %d %s", rec.Code, rec.Body.String())
	}
	var page models.CaseListResponse
	decodeData(t, env, &page)
	if len(page.Cases) != 0 || page.Pagination.HasNext || page.Pagination.Total != 1 {
		t.Fatalf("huge page = %d items, %+v", len(page.Cases), page.Pagination)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/files?page="+huge, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("huge files page: %d %s", rec.Code, rec.Body.String())
	}

	for _, path := range []string{
		"/api/v1/cases?page=abc",
		"/api/v1/cases?limit=ten",
		"/api/v1/files?page=1.5",
		"/api/v1/files?limit=x",
	} {
		rec, env := s.do(t, http.MethodGet, path, "alice", nil)
		if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != codeValidation {
			t.Errorf("%s: %d %s", path, rec.Code, rec.Body.String())
			continue
		}
		if len(env.Error.Details) != 1 || !strings.Contains(env.Error.Details[0], "must be an integer") {
			t.Errorf("%s: details %v", path, env.Error.Details)
		}
	}
}

func TestDisplayIDIsNotFoundOverHTTP(t *testing.T) {
	s := newTestServer(t)
	c := s.createCase(t, "alice", "Real")

	for _, path := range []string{
		"/api/v1/cases/" + c.DisplayID,
		"/api/v1/cases/" + c.DisplayID + "/files",
		"/api/v1/cases/" + c.DisplayID + "/stats",
	} {
		rec, env := s.do(t, http.MethodGet, path, "alice", nil)
		if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != codeNotFound {
			t.Errorf("%s: %d %s", path, rec.Code, rec.Body.String())
		}
	}

	rec, env := s.do(t, http.MethodPost, "/api/v1/uploads/slots", "alice", map[string]interface{}{
		"case_id":      c.DisplayID,
		"file_name":    "shot.png",
		"file_type":    "image/png",
		"file_size":    10,
		"capture_type": "screenshot",
	})
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != codeNotFound {
		t.Fatalf("slot for display id: %d %s", rec.Code, rec.Body.String())
	}
}

func TestExportCasesCSV(t *testing.T) {
	s := newTestServer(t)
	s.createCase(t, "alice", `Acme, Inc. said "stop"`)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/cases/export", "alice", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "attachment") {
		t.Fatal("export must be an attachment")
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil || len(rows) != 2 || rows[1][1] != `Acme, Inc. said "stop"` {
		t.Fatalf("rows = %q, err = %v", rows, err)
	}
}

func TestBulkDeleteAndRebuildOverHTTP(t *testing.T) {
	s := newTestServer(t)
	c := s.createCase(t, "alice", "Phishing")
	a := s.upload(t, "alice", c.ID, 100)
	b := s.upload(t, "alice", c.ID, 200)

	rec, env := s.do(t, http.MethodPost, "/api/v1/files/bulk-delete", "alice", map[string]interface{}{
		"file_keys": []string{a.FileKey, "missing"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk delete: %d %s", rec.Code, rec.Body.String())
	}
	var bulk models.BulkDeleteResponse
	decodeData(t, env, &bulk)
	if bulk.Succeeded != 1 || bulk.Failed != 1 {
		t.Fatalf("bulk = %+v", bulk)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/cases/"+c.ID+"/metadata/rebuild", "alice", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user rebuild: %d", rec.Code)
	}

	rec, env = s.do(t, http.MethodPost, "/api/v1/cases/"+c.ID+"/metadata/rebuild", "sup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild: %d %s", rec.Code, rec.Body.String())
	}
	var rebuilt models.RebuildMetadataResponse
	decodeData(t, env, &rebuilt)
	if rebuilt.Current.TotalScreenshots != 1 || rebuilt.Current.TotalFileSize != 200 {
		t.Fatalf("rebuilt = %+v", rebuilt.Current)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/cases/"+c.ID+"/files?capture_type=screenshot", "alice", nil)
	var list models.FileListResponse
	decodeData(t, env, &list)
	if rec.Code != http.StatusOK || list.Pagination.Total != 1 || list.Files[0].FileKey != b.FileKey {
		t.Fatalf("case files: %d %+v", rec.Code, list)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/files?min_duration=abc", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad min_duration: %d", rec.Code)
	}
}

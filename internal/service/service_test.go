package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.FileEvent
	err    error
}

func (p *recordingPublisher) PublishFileEvent(_ context.Context, event *models.FileEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []models.FileEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.FileEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type countingInvalidator struct {
	mu    sync.Mutex
	cases []string
}

func (c *countingInvalidator) Invalidate(_ context.Context, caseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cases = append(c.cases, caseID)
}

type testEnv struct {
	cases     *memory.CaseRepository
	files     *memory.FileRepository
	storage   *memory.ObjectStorage
	publisher *recordingPublisher
	stats     *countingInvalidator

	metadata MetadataService
	uploads  UploadService
	deletes  DeleteService
	caseSvc  CaseService
	fileSvc  FileService
}

var (
	alice      = models.Requester{ID: "alice", Username: "alice", Role: models.RoleUser}
	bob        = models.Requester{ID: "bob", Username: "bob", Role: models.RoleUser}
	supervisor = models.Requester{ID: "sup", Username: "sup", Role: models.RoleSupervisor}
)

func testUploadConfig() UploadConfig {
	return UploadConfig{
		AllowedTypes:     []string{"image/png", "image/jpeg", "video/*"},
		MaxFileSize:      50 * 1024 * 1024,
		DefaultURLExpiry: time.Hour,
		MinURLExpiry:     time.Minute,
		MaxURLExpiry:     24 * time.Hour,
		MaxBulkKeys:      5,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	files := memory.NewFileRepository()
	return newTestEnvWith(t, memory.NewCaseRepository(files), files)
}

func newTestEnvWith(t *testing.T, cases *memory.CaseRepository, files *memory.FileRepository) *testEnv {
	t.Helper()

	log := zerolog.Nop()
	cfg := testUploadConfig()
	env := &testEnv{
		cases:     cases,
		files:     files,
		storage:   memory.NewObjectStorage("http://storage.local/evidence"),
		publisher: &recordingPublisher{},
		stats:     &countingInvalidator{},
	}

	env.metadata = NewMetadataService(cases, files, env.publisher, env.stats, log)
	env.uploads = NewUploadService(cases, files, env.storage, env.metadata, log, cfg)
	env.deletes = NewDeleteService(files, env.storage, env.metadata, nil, log, cfg.MaxBulkKeys)
	env.caseSvc = NewCaseService(cases, files, env.storage, nil, nil, log)
	env.fileSvc = NewFileService(cases, files, env.storage, nil, nil, log, cfg)
	return env
}

func (e *testEnv) createCase(t *testing.T, owner models.Requester) *models.Case {
	t.Helper()

	c, err := e.caseSvc.CreateCase(context.Background(), &models.CreateCaseRequest{Title: "Phishing report"}, owner)
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	return c
}

// issue выдает слот и кладет объект в хранилище, как это сделал бы клиент.
func (e *testEnv) issue(t *testing.T, caseID string, captureType models.CaptureType, size int64, uploader models.Requester) *models.UploadSlotResponse {
	t.Helper()

	fileType, name := "image/png", "capture.png"
	if captureType == models.CaptureVideo {
		fileType, name = "video/webm", "recording.webm"
	}

	slot, err := e.uploads.IssueUploadSlot(context.Background(), &models.IssueUploadSlotRequest{
		CaseID:      caseID,
		FileName:    name,
		FileType:    fileType,
		FileSize:    &size,
		CaptureType: string(captureType),
	}, uploader)
	if err != nil {
		t.Fatalf("IssueUploadSlot: %v", err)
	}

	e.storage.PutObject(slot.FileKey, size, fileType)
	return slot
}

func (e *testEnv) confirm(t *testing.T, fileID string) *models.ConfirmUploadResponse {
	t.Helper()

	resp, err := e.uploads.ConfirmUpload(context.Background(), &models.ConfirmUploadRequest{FileID: fileID})
	if err != nil {
		t.Fatalf("ConfirmUpload: %v", err)
	}
	return resp
}

func (e *testEnv) metadataOf(t *testing.T, caseID string) models.CaseMetadata {
	t.Helper()

	c, err := e.cases.GetByID(context.Background(), caseID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return c.Metadata
}

func (e *testEnv) completedCount(t *testing.T, caseID string) int64 {
	t.Helper()

	totals, err := e.files.GetTotalsByCase(context.Background(), caseID)
	if err != nil {
		t.Fatalf("GetTotalsByCase: %v", err)
	}
	return totals.Screenshots + totals.Videos
}

func int64Ptr(v int64) *int64 { return &v }

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/cache"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

func TestGetDownloadURL_CompletedOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.createCase(t, alice)
	slot := env.issue(t, c.ID, models.CaptureScreenshot, 10, alice)

	var verr *ValidationError
	if _, err := env.fileSvc.GetDownloadURL(ctx, slot.FileKey, nil, ""); !errors.As(err, &verr) {
		t.Fatalf("pending file: expected ValidationError, got %v", err)
	}

	env.confirm(t, slot.FileID)

	resp, err := env.fileSvc.GetDownloadURL(ctx, slot.FileKey, int64Ptr(600), "evidence.png")
	if err != nil {
		t.Fatalf("GetDownloadURL: %v", err)
	}
	if resp.ExpiresIn != 600 || !strings.Contains(resp.URL, "evidence.png") {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if _, err := env.fileSvc.GetDownloadURL(ctx, slot.FileKey, int64Ptr(1), ""); !errors.As(err, &verr) {
		t.Fatalf("expiry out of range: expected ValidationError, got %v", err)
	}

	var nerr *NotFoundError
	if _, err := env.fileSvc.GetDownloadURL(ctx, "nope", nil, ""); !errors.As(err, &nerr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestGetDownloadURL_CachedUntilDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	urls := cache.NewURLCache(16, 12*time.Hour)
	files := NewFileService(env.cases, env.files, env.storage, nil, urls, zerolog.Nop(), testUploadConfig())
	deletes := NewDeleteService(env.files, env.storage, env.metadata, urls, zerolog.Nop(), 10)

	c := env.createCase(t, alice)
	slot := env.issue(t, c.ID, models.CaptureScreenshot, 10, alice)
	env.confirm(t, slot.FileID)

	record, _ := env.files.GetByKey(ctx, slot.FileKey)
	name := record.OriginalName
	if name == "" {
		name = record.FileName
	}

	first, err := files.GetDownloadURL(ctx, slot.FileKey, nil, "")
	if err != nil {
		t.Fatalf("GetDownloadURL: %v", err)
	}
	second, _ := files.GetDownloadURL(ctx, slot.FileKey, nil, "")
	if first.URL != second.URL || !first.ExpiresAt.Equal(second.ExpiresAt) {
		t.Fatalf("second call must reuse the cached url: %+v vs %+v", first, second)
	}
	if _, _, ok := urls.Get(slot.FileKey, time.Hour, name); !ok {
		t.Fatal("url must be cached under the default filename")
	}

	if _, err := deletes.DeleteFile(ctx, slot.FileKey, alice); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, _, ok := urls.Get(slot.FileKey, time.Hour, name); ok {
		t.Fatal("delete must drop cached urls")
	}
}

func TestListFiles_FiltersAndCaseScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.createCase(t, alice)
	other := env.createCase(t, alice)

	shot := env.issue(t, c.ID, models.CaptureScreenshot, 10, alice)
	env.confirm(t, shot.FileID)
	env.issue(t, c.ID, models.CaptureVideo, 20, alice)
	env.issue(t, other.ID, models.CaptureScreenshot, 30, alice)

	resp, err := env.fileSvc.ListFiles(ctx, models.FileFilter{
		CaseID:       c.ID,
		CaptureTypes: []models.CaptureType{models.CaptureScreenshot},
	})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if resp.Pagination.Total != 1 || resp.Files[0].FileKey != shot.FileKey {
		t.Fatalf("unexpected files: %+v", resp)
	}

	all, _ := env.fileSvc.ListFiles(ctx, models.FileFilter{})
	if all.Pagination.Total != 3 {
		t.Fatalf("global list total = %d", all.Pagination.Total)
	}

	var nerr *NotFoundError
	if _, err := env.fileSvc.ListFiles(ctx, models.FileFilter{CaseID: "missing"}); !errors.As(err, &nerr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	var verr *ValidationError
	if _, err := env.fileSvc.ListFiles(ctx, models.FileFilter{Statuses: []models.FileStatus{"lost"}}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGetCaseFileStats_ShowsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.createCase(t, alice)
	slot := env.issue(t, c.ID, models.CaptureVideo, 700, alice)
	env.confirm(t, slot.FileID)

	stats, err := env.fileSvc.GetCaseFileStats(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCaseFileStats: %v", err)
	}
	if !stats.InSync || stats.Files.LargestFile == nil || stats.Files.LargestFile.FileSize != 700 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	_, _ = env.cases.ApplyMetadataDelta(ctx, c.ID, models.MetadataDelta{Videos: 1, At: time.Now()})
	stats, _ = env.fileSvc.GetCaseFileStats(ctx, c.ID)
	if stats.InSync {
		t.Fatal("drift must be reported")
	}
}

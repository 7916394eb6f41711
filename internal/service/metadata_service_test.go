package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service/reconciler"
)

func TestReconcile_StrayRemovalClampsAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.createCase(t, alice)

	file := &models.FileRecord{ID: "f", FileKey: "k", CaseID: c.ID, CaptureType: models.CaptureVideo}
	if w := env.metadata.Reconcile(ctx, file, reconciler.Removed(models.CaptureVideo, 500)); w != nil {
		t.Fatalf("unexpected warning: %v", w)
	}

	meta := env.metadataOf(t, c.ID)
	if meta.TotalVideos != 0 || meta.TotalFileSize != 0 || meta.LastActivity == nil {
		t.Fatalf("counters must clamp at zero: %+v", meta)
	}
	if len(env.stats.cases) != 1 || env.stats.cases[0] != c.ID {
		t.Fatalf("stats cache must be invalidated for the case, got %v", env.stats.cases)
	}
}

func TestReconcile_PublishFailureIsNotAWarning(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errors.New("broker down")
	c := env.createCase(t, alice)

	file := &models.FileRecord{ID: "f", FileKey: "k", CaseID: c.ID, CaptureType: models.CaptureScreenshot}
	if w := env.metadata.Reconcile(context.Background(), file, reconciler.Completed(models.CaptureScreenshot, 1)); w != nil {
		t.Fatalf("publish failure must not be reported as drift: %v", w)
	}
	if env.metadataOf(t, c.ID).TotalScreenshots != 1 {
		t.Fatal("delta must be applied")
	}
}

func TestReconcile_MissingCaseWarning(t *testing.T) {
	env := newTestEnv(t)

	file := &models.FileRecord{ID: "f", FileKey: "k", CaseID: "gone"}
	w := env.metadata.Reconcile(context.Background(), file, reconciler.Completed(models.CaptureScreenshot, 1))
	if w == nil {
		t.Fatal("expected warning")
	}

	var nerr *NotFoundError
	if w.CaseID != "gone" || !errors.As(w, &nerr) {
		t.Fatalf("warning must wrap the not-found cause: %+v", w)
	}
}

func TestRebuild_RepairsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.createCase(t, alice)

	a := env.issue(t, c.ID, models.CaptureScreenshot, 100, alice)
	env.confirm(t, a.FileID)
	b := env.issue(t, c.ID, models.CaptureVideo, 300, alice)
	env.confirm(t, b.FileID)

	// искусственный дрейф
	at := time.Now()
	_, _ = env.cases.ApplyMetadataDelta(ctx, c.ID, models.MetadataDelta{Screenshots: 5, FileSize: 9999, At: at})

	if _, err := env.metadata.Rebuild(ctx, c.ID, alice); err == nil {
		t.Fatal("regular user must not rebuild metadata")
	}

	resp, err := env.metadata.Rebuild(ctx, c.ID, supervisor)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if resp.Previous.TotalScreenshots != 6 {
		t.Fatalf("previous = %+v", resp.Previous)
	}

	meta := env.metadataOf(t, c.ID)
	if meta.TotalScreenshots != 1 || meta.TotalVideos != 1 || meta.TotalFileSize != 400 {
		t.Fatalf("rebuilt metadata = %+v", meta)
	}

	stats, err := env.fileSvc.GetCaseFileStats(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCaseFileStats: %v", err)
	}
	if !stats.InSync {
		t.Fatalf("metadata must be in sync after rebuild: %+v", stats)
	}

	var nerr *NotFoundError
	if _, err := env.metadata.Rebuild(ctx, "missing", supervisor); !errors.As(err, &nerr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

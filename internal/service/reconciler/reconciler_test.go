package reconciler

import (
	"testing"
	"time"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestApply_CompletedScreenshot(t *testing.T) {
	meta := Apply(models.CaseMetadata{}, Completed(models.CaptureScreenshot, 5242880), now)

	if meta.TotalScreenshots != 1 {
		t.Errorf("TotalScreenshots = %d, want 1", meta.TotalScreenshots)
	}
	if meta.TotalVideos != 0 {
		t.Errorf("TotalVideos = %d, want 0", meta.TotalVideos)
	}
	if meta.TotalFileSize != 5242880 {
		t.Errorf("TotalFileSize = %d, want 5242880", meta.TotalFileSize)
	}
	if meta.LastActivity == nil || !meta.LastActivity.Equal(now) {
		t.Errorf("LastActivity = %v, want %v", meta.LastActivity, now)
	}
}

func TestApply_CompletedThenRemovedVideo(t *testing.T) {
	meta := Apply(models.CaseMetadata{}, Completed(models.CaptureVideo, 1000), now)
	meta = Apply(meta, Removed(models.CaptureVideo, 1000), now.Add(time.Minute))

	if meta.TotalVideos != 0 || meta.TotalFileSize != 0 {
		t.Fatalf("expected empty counters, got %+v", meta)
	}
	if !meta.LastActivity.Equal(now.Add(time.Minute)) {
		t.Errorf("LastActivity not updated on removal: %v", meta.LastActivity)
	}
}

func TestApply_RemovedClampsAtZero(t *testing.T) {
	meta := Apply(models.CaseMetadata{TotalFileSize: 10}, Removed(models.CaptureScreenshot, 500), now)

	if meta.TotalScreenshots != 0 {
		t.Errorf("TotalScreenshots = %d, want 0", meta.TotalScreenshots)
	}
	if meta.TotalFileSize != 0 {
		t.Errorf("TotalFileSize = %d, want 0", meta.TotalFileSize)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := models.CaseMetadata{TotalScreenshots: 2, TotalFileSize: 100}
	_ = Apply(in, Completed(models.CaptureScreenshot, 50), now)

	if in.TotalScreenshots != 2 || in.TotalFileSize != 100 || in.LastActivity != nil {
		t.Fatalf("input changed: %+v", in)
	}
}

func TestApply_NeverNegativeForAnyOrdering(t *testing.T) {
	events := []Event{
		Removed(models.CaptureVideo, 300),
		Completed(models.CaptureScreenshot, 100),
		Removed(models.CaptureScreenshot, 100),
		Removed(models.CaptureScreenshot, 100),
		Completed(models.CaptureVideo, 50),
		Removed(models.CaptureVideo, 9999),
	}

	meta := models.CaseMetadata{}
	for i, e := range events {
		meta = Apply(meta, e, now)
		if meta.TotalScreenshots < 0 || meta.TotalVideos < 0 || meta.TotalFileSize < 0 {
			t.Fatalf("step %d: negative counter %+v", i, meta)
		}
	}
}

func TestDeltaFor(t *testing.T) {
	d := DeltaFor(Removed(models.CaptureVideo, 42), now)
	if d.Videos != -1 || d.Screenshots != 0 || d.FileSize != -42 {
		t.Errorf("unexpected delta %+v", d)
	}

	d = DeltaFor(Completed(models.CaptureScreenshot, -5), now)
	if d.FileSize != 0 {
		t.Errorf("negative size must be ignored, got %d", d.FileSize)
	}
}

func TestInSync(t *testing.T) {
	totals := models.FileTotals{Screenshots: 1, Videos: 2, TotalSize: 30}
	meta := FromTotals(totals)
	if !InSync(meta, totals) {
		t.Fatal("expected rebuilt metadata to be in sync")
	}

	meta.TotalVideos = 1
	if InSync(meta, totals) {
		t.Fatal("expected drift to be detected")
	}
}

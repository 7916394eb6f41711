package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/query"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository"
)

func TestCaseRepository_DisplayIDsUnderConcurrency(t *testing.T) {
	repo := NewCaseRepository(nil)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &models.Case{ID: fmt.Sprintf("case-%d", i)}
			if err := repo.Create(ctx, c); err != nil {
				t.Errorf("Create: %v", err)
			}
		}(i)
	}
	wg.Wait()

	all, _ := repo.ListAll(ctx, models.CaseFilter{})
	seen := make(map[string]bool)
	for _, c := range all {
		if seen[c.DisplayID] {
			t.Fatalf("duplicate display id %s", c.DisplayID)
		}
		seen[c.DisplayID] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d display ids, want %d", len(seen), n)
	}
}

func TestCaseRepository_ApplyMetadataDeltaConcurrent(t *testing.T) {
	repo := NewCaseRepository(nil)
	ctx := context.Background()
	_ = repo.Create(ctx, &models.Case{ID: "case-1"})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyMetadataDelta(ctx, "case-1", models.MetadataDelta{Screenshots: 1, FileSize: 10, At: time.Now()})
			if err != nil {
				t.Errorf("ApplyMetadataDelta: %v", err)
			}
		}()
	}
	wg.Wait()

	c, _ := repo.GetByID(ctx, "case-1")
	if c.Metadata.TotalScreenshots != 100 || c.Metadata.TotalFileSize != 1000 {
		t.Fatalf("lost updates: %+v", c.Metadata)
	}

	_, err := repo.ApplyMetadataDelta(ctx, "missing", models.MetadataDelta{})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCaseRepository_UpdateKeepsMetadata(t *testing.T) {
	repo := NewCaseRepository(nil)
	ctx := context.Background()
	_ = repo.Create(ctx, &models.Case{ID: "case-1", Title: "old"})
	_, _ = repo.ApplyMetadataDelta(ctx, "case-1", models.MetadataDelta{Videos: 1, At: time.Now()})

	// клиентский объект с пустым агрегатом не должен затирать счетчики
	if err := repo.Update(ctx, &models.Case{ID: "case-1", Title: "new"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	c, _ := repo.GetByID(ctx, "case-1")
	if c.Title != "new" || c.Metadata.TotalVideos != 1 || c.DisplayID != "CASE-001" {
		t.Fatalf("unexpected case after update: %+v", c)
	}
}

func TestFileRepository_MarkCompletedOnlyFromPending(t *testing.T) {
	repo := NewFileRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, &models.FileRecord{ID: "f1", FileKey: "k1", Status: models.FileStatusPending})

	ok, err := repo.MarkCompleted(ctx, "f1", repository.Completion{FileSize: 5, UploadedAt: time.Now()})
	if err != nil || !ok {
		t.Fatalf("first MarkCompleted = %v, %v", ok, err)
	}

	ok, _ = repo.MarkCompleted(ctx, "f1", repository.Completion{FileSize: 99, UploadedAt: time.Now()})
	if ok {
		t.Fatal("second MarkCompleted must not transition")
	}

	if ok, _ := repo.MarkFailed(ctx, "f1"); ok {
		t.Fatal("completed file must not become failed")
	}

	f, _ := repo.GetByKey(ctx, "k1")
	if f.FileSize != 5 || f.Status != models.FileStatusCompleted {
		t.Fatalf("unexpected record %+v", f)
	}
}

func TestFileRepository_ListAndCascade(t *testing.T) {
	files := NewFileRepository()
	cases := NewCaseRepository(files)
	ctx := context.Background()
	base := time.Now()

	_ = cases.Create(ctx, &models.Case{ID: "c1"})
	for i, status := range []models.FileStatus{models.FileStatusCompleted, models.FileStatusPending, models.FileStatusCompleted} {
		_ = files.Create(ctx, &models.FileRecord{
			ID:        string(rune('a' + i)),
			FileKey:   string(rune('a'+i)) + ".png",
			CaseID:    "c1",
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	got, total, err := files.List(ctx, models.FileFilter{
		CaseID:   "c1",
		Statuses: []models.FileStatus{models.FileStatusCompleted},
		SortBy:   models.FileSortDate,
	}, query.NewPagination(1, 1))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("total=%d len=%d first=%v", total, len(got), got)
	}

	if err := cases.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	keys, _ := files.ListKeysByCase(ctx, "c1")
	if len(keys) != 0 {
		t.Fatalf("files left after case delete: %v", keys)
	}
}

func TestFileRepository_ListHugePage(t *testing.T) {
	repo := NewFileRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, &models.FileRecord{ID: "f1", FileKey: "k1", CaseID: "c1", Status: models.FileStatusPending})

	got, total, err := repo.List(ctx, models.FileFilter{}, query.NewPagination(math.MaxInt/50, 100))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(got) != 0 {
		t.Fatalf("total=%d len=%d, want 1 and 0", total, len(got))
	}
}

func TestFileRepository_ReadsDoNotAliasStorage(t *testing.T) {
	repo := NewFileRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, &models.FileRecord{ID: "f1", FileKey: "k1", Status: models.FileStatusPending})

	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ok, err := repo.MarkCompleted(ctx, "f1", repository.Completion{
		FileSize:   5,
		Storage:    models.StorageMetadata{LastModified: &modified},
		UploadedAt: time.Now(),
	})
	if err != nil || !ok {
		t.Fatalf("MarkCompleted = %v, %v", ok, err)
	}

	first, _ := repo.GetByID(ctx, "f1")
	*first.Storage.LastModified = time.Time{}

	second, _ := repo.GetByID(ctx, "f1")
	if !second.Storage.LastModified.Equal(modified) {
		t.Fatalf("LastModified = %v, want %v", second.Storage.LastModified, modified)
	}
}

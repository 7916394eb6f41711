// Package memory - in-memory реализации репозиториев для тестов и локального запуска.
// Семантика совпадает с Postgres-версиями: те же фильтры, сортировка,
// условные переходы статусов и атомарные дельты агрегата.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/query"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository"
)

type CaseRepository struct {
	mu      sync.RWMutex
	cases   map[string]*models.Case
	counter atomic.Int64
	files   *FileRepository
}

// NewCaseRepository. files может быть nil; если задан, удаление кейса
// удаляет и его файлы, как ON DELETE CASCADE.
func NewCaseRepository(files *FileRepository) *CaseRepository {
	return &CaseRepository{
		cases: make(map[string]*models.Case),
		files: files,
	}
}

func (r *CaseRepository) Create(_ context.Context, c *models.Case) error {
	c.DisplayID = models.FormatDisplayID(r.counter.Add(1))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cases[c.ID] = cloneCase(c)
	return nil
}

func (r *CaseRepository) GetByID(_ context.Context, id string) (*models.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cases[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneCase(c), nil
}

func (r *CaseRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.cases[id]
	return ok, nil
}

func (r *CaseRepository) Update(_ context.Context, c *models.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.cases[c.ID]
	if !ok {
		return repository.ErrNotFound
	}

	updated := cloneCase(c)
	updated.DisplayID = stored.DisplayID
	updated.CreatedBy = stored.CreatedBy
	updated.CreatedAt = stored.CreatedAt
	updated.Metadata = stored.Metadata
	r.cases[c.ID] = updated
	return nil
}

func (r *CaseRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.cases[id]
	delete(r.cases, id)
	r.mu.Unlock()

	if !ok {
		return repository.ErrNotFound
	}
	if r.files != nil {
		r.files.deleteByCase(id)
	}
	return nil
}

func (r *CaseRepository) List(ctx context.Context, filter models.CaseFilter, page query.Pagination) ([]*models.Case, int64, error) {
	matched, err := r.ListAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	start, end := page.Window(len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (r *CaseRepository) ListAll(_ context.Context, filter models.CaseFilter) ([]*models.Case, error) {
	r.mu.RLock()
	matched := []*models.Case{}
	for _, c := range r.cases {
		if query.MatchCase(c, filter) {
			matched = append(matched, cloneCase(c))
		}
	}
	r.mu.RUnlock()

	query.SortCases(matched, filter.SortBy, filter.SortOrder)
	return matched, nil
}

func (r *CaseRepository) ApplyMetadataDelta(_ context.Context, id string, delta models.MetadataDelta) (*models.CaseMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cases[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	c.Metadata = delta.ApplyTo(c.Metadata)
	c.UpdatedAt = delta.At
	meta := c.Metadata
	return &meta, nil
}

func (r *CaseRepository) SetMetadata(_ context.Context, id string, meta models.CaseMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cases[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Metadata = meta
	return nil
}

func (r *CaseRepository) GetStats(ctx context.Context) (*models.CaseStats, error) {
	all, err := r.ListAll(ctx, models.CaseFilter{})
	if err != nil {
		return nil, err
	}
	stats := query.BuildCaseCounts(all)
	return &stats, nil
}

type FileRepository struct {
	mu    sync.RWMutex
	files map[string]*models.FileRecord
}

func NewFileRepository() *FileRepository {
	return &FileRepository{files: make(map[string]*models.FileRecord)}
}

func (r *FileRepository) Create(_ context.Context, f *models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.files[f.ID] = cloneFile(f)
	return nil
}

func (r *FileRepository) GetByID(_ context.Context, id string) (*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneFile(f), nil
}

func (r *FileRepository) GetByKey(_ context.Context, fileKey string) (*models.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.files {
		if f.FileKey == fileKey {
			return cloneFile(f), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *FileRepository) MarkCompleted(_ context.Context, id string, c repository.Completion) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok || f.Status != models.FileStatusPending {
		return false, nil
	}

	uploadedAt := c.UploadedAt
	f.Status = models.FileStatusCompleted
	f.FileSize = c.FileSize
	f.Checksum = c.Checksum
	f.Storage = c.Storage
	if c.Storage.LastModified != nil {
		modified := *c.Storage.LastModified
		f.Storage.LastModified = &modified
	}
	f.UploadedAt = &uploadedAt
	f.UpdatedAt = uploadedAt
	return true, nil
}

func (r *FileRepository) MarkFailed(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok || f.Status != models.FileStatusPending {
		return false, nil
	}
	f.Status = models.FileStatusFailed
	return true, nil
}

func (r *FileRepository) Delete(_ context.Context, id string) (*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.files, id)
	return f, nil
}

func (r *FileRepository) List(_ context.Context, filter models.FileFilter, page query.Pagination) ([]*models.FileRecord, int64, error) {
	matched := r.match(func(f *models.FileRecord) bool { return query.MatchFile(f, filter) })
	query.SortFiles(matched, filter.SortBy, filter.SortOrder)

	start, end := page.Window(len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (r *FileRepository) ListKeysByCase(_ context.Context, caseID string) ([]string, error) {
	files := r.byCase(caseID)
	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.FileKey)
	}
	return keys, nil
}

func (r *FileRepository) GetStats(_ context.Context, caseID string) (*models.FileStats, error) {
	files := r.byCase(caseID)
	stats := query.BuildFileStats(files)
	return &stats, nil
}

func (r *FileRepository) GetTotalsByCase(_ context.Context, caseID string) (*models.FileTotals, error) {
	totals := query.BuildFileTotals(r.byCase(caseID))
	return &totals, nil
}

// byCase возвращает файлы кейса в порядке создания. Пустой caseID - все файлы.
func (r *FileRepository) byCase(caseID string) []*models.FileRecord {
	files := r.match(func(f *models.FileRecord) bool {
		return caseID == "" || f.CaseID == caseID
	})
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.Before(files[j].CreatedAt)
		}
		return files[i].ID < files[j].ID
	})
	return files
}

func (r *FileRepository) match(keep func(*models.FileRecord) bool) []*models.FileRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.FileRecord{}
	for _, f := range r.files {
		if keep(f) {
			out = append(out, cloneFile(f))
		}
	}
	return out
}

func (r *FileRepository) deleteByCase(caseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, f := range r.files {
		if f.CaseID == caseID {
			delete(r.files, id)
		}
	}
}

func cloneCase(c *models.Case) *models.Case {
	out := *c
	out.Tags = append([]string{}, c.Tags...)
	if c.Metadata.LastActivity != nil {
		t := *c.Metadata.LastActivity
		out.Metadata.LastActivity = &t
	}
	return &out
}

func cloneFile(f *models.FileRecord) *models.FileRecord {
	out := *f
	if f.Video != nil {
		v := *f.Video
		out.Video = &v
	}
	if f.UploadedAt != nil {
		t := *f.UploadedAt
		out.UploadedAt = &t
	}
	if f.Storage.LastModified != nil {
		t := *f.Storage.LastModified
		out.Storage.LastModified = &t
	}
	return &out
}

var (
	_ repository.CaseRepository = (*CaseRepository)(nil)
	_ repository.FileRepository = (*FileRepository)(nil)
)

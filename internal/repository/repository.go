package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/query"
)

var (
	// ErrNotFound - запись не найдена в хранилище метаданных.
	ErrNotFound = errors.New("record not found")
	// ErrObjectNotFound - объекта нет в объектном хранилище.
	ErrObjectNotFound = errors.New("object not found")
)

type CaseRepository interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id string) (*models.Case, error)
	Exists(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, c *models.Case) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.CaseFilter, page query.Pagination) ([]*models.Case, int64, error)
	ListAll(ctx context.Context, filter models.CaseFilter) ([]*models.Case, error)
	// ApplyMetadataDelta применяет дельту к агрегату одной операцией и
	// возвращает новое значение.
	ApplyMetadataDelta(ctx context.Context, id string, delta models.MetadataDelta) (*models.CaseMetadata, error)
	SetMetadata(ctx context.Context, id string, meta models.CaseMetadata) error
	GetStats(ctx context.Context) (*models.CaseStats, error)
}

// Completion - данные, фиксируемые при переходе pending -> completed.
type Completion struct {
	FileSize   int64
	Checksum   string
	Storage    models.StorageMetadata
	UploadedAt time.Time
}

type FileRepository interface {
	Create(ctx context.Context, f *models.FileRecord) error
	GetByID(ctx context.Context, id string) (*models.FileRecord, error)
	GetByKey(ctx context.Context, fileKey string) (*models.FileRecord, error)
	// MarkCompleted переводит запись в completed только из pending.
	// false означает, что перехода не было.
	MarkCompleted(ctx context.Context, id string, c Completion) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
	// Delete удаляет запись и возвращает ее состояние на момент удаления.
	Delete(ctx context.Context, id string) (*models.FileRecord, error)
	List(ctx context.Context, filter models.FileFilter, page query.Pagination) ([]*models.FileRecord, int64, error)
	ListKeysByCase(ctx context.Context, caseID string) ([]string, error)
	GetStats(ctx context.Context, caseID string) (*models.FileStats, error)
	GetTotalsByCase(ctx context.Context, caseID string) (*models.FileTotals, error)
}

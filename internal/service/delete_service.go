package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service/reconciler"
)

type DeleteService interface {
	DeleteFile(ctx context.Context, fileKey string, requester models.Requester) (*models.DeleteFileResponse, error)
	BulkDelete(ctx context.Context, fileKeys []string, requester models.Requester) (*models.BulkDeleteResponse, error)
}

// URLInvalidator забывает выданные ссылки на скачивание файла.
type URLInvalidator interface {
	Remove(fileKey string)
}

type deleteService struct {
	fileRepo    repository.FileRepository
	storage     repository.ObjectStorage
	metadata    MetadataService
	urls        URLInvalidator
	logger      zerolog.Logger
	maxBulkKeys int
}

func NewDeleteService(
	fileRepo repository.FileRepository,
	storage repository.ObjectStorage,
	metadata MetadataService,
	urls URLInvalidator,
	logger zerolog.Logger,
	maxBulkKeys int,
) DeleteService {
	if maxBulkKeys <= 0 {
		maxBulkKeys = 100
	}
	return &deleteService{
		fileRepo:    fileRepo,
		storage:     storage,
		metadata:    metadata,
		urls:        urls,
		logger:      logger,
		maxBulkKeys: maxBulkKeys,
	}
}

func (s *deleteService) DeleteFile(ctx context.Context, fileKey string, requester models.Requester) (*models.DeleteFileResponse, error) {
	record, err := s.fileRepo.GetByKey(ctx, fileKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "file", ID: fileKey}
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}

	if record.UploadedBy != requester.ID && !requester.IsElevated() {
		return nil, &PermissionError{Action: "delete file " + fileKey}
	}

	// Сначала объект: при ошибке хранилища запись остается и удаление можно повторить
	if err := s.storage.DeleteObject(ctx, fileKey); err != nil {
		return nil, fmt.Errorf("failed to delete file from storage: %w", err)
	}

	deleted, err := s.fileRepo.Delete(ctx, record.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "file", ID: fileKey}
		}
		return nil, fmt.Errorf("failed to delete file record: %w", err)
	}

	if s.urls != nil {
		s.urls.Remove(fileKey)
	}

	// В агрегате учитывались только completed-файлы
	var warning *ReconciliationWarning
	if deleted.Status == models.FileStatusCompleted {
		warning = s.metadata.Reconcile(ctx, deleted, reconciler.Removed(deleted.CaptureType, deleted.FileSize))
	}

	s.logger.Info().
		Str("file_id", deleted.ID).
		Str("file_key", fileKey).
		Str("case_id", deleted.CaseID).
		Str("status", deleted.Status.String()).
		Str("deleted_by", requester.ID).
		Msg("File deleted")

	return &models.DeleteFileResponse{
		FileKey: fileKey,
		Deleted: true,
		Message: "File permanently deleted",
		Warning: warningText(warning),
	}, nil
}

func (s *deleteService) BulkDelete(ctx context.Context, fileKeys []string, requester models.Requester) (*models.BulkDeleteResponse, error) {
	keys := uniqueKeys(fileKeys)
	if len(keys) == 0 {
		return nil, NewValidationError("file_keys must contain at least one key")
	}
	if len(keys) > s.maxBulkKeys {
		return nil, NewValidationError(fmt.Sprintf("file_keys must contain at most %d keys", s.maxBulkKeys))
	}

	resp := &models.BulkDeleteResponse{Results: make([]models.BulkDeleteItem, 0, len(keys))}
	for _, key := range keys {
		item := models.BulkDeleteItem{FileKey: key}

		result, err := s.DeleteFile(ctx, key, requester)
		if err != nil {
			item.Error = publicMessage(err)
			resp.Failed++
			s.logger.Error().
				Err(err).
				Str("file_key", key).
				Msg("Bulk delete item failed")
		} else {
			item.Success = true
			item.Warning = result.Warning
			resp.Succeeded++
		}

		resp.Results = append(resp.Results, item)
	}

	return resp, nil
}

// uniqueKeys убирает пустые ключи и повторы, сохраняя порядок.
func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// publicMessage скрывает внутренние ошибки от клиента.
func publicMessage(err error) string {
	var (
		verr *ValidationError
		nerr *NotFoundError
		perr *PermissionError
		serr *StorageMismatchError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &nerr), errors.As(err, &perr), errors.As(err, &serr):
		return err.Error()
	default:
		return "internal error"
	}
}

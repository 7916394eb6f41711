package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/query"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service/reconciler"
)

type FileService interface {
	GetFile(ctx context.Context, fileKey string) (*models.FileRecord, error)
	ListFiles(ctx context.Context, filter models.FileFilter) (*models.FileListResponse, error)
	GetDownloadURL(ctx context.Context, fileKey string, expiresIn *int64, filename string) (*models.DownloadURLResponse, error)
	// GetFileStats. Пустой caseID - статистика по всем кейсам.
	GetFileStats(ctx context.Context, caseID string) (*models.FileStats, error)
	GetCaseFileStats(ctx context.Context, caseID string) (*models.CaseFileStatsResponse, error)
}

type FileStatsCache interface {
	GetFileStats(ctx context.Context, caseID string) (*models.FileStats, bool)
	SetFileStats(ctx context.Context, caseID string, stats *models.FileStats)
}

type DownloadURLCache interface {
	URLInvalidator
	Get(fileKey string, expiry time.Duration, filename string) (string, time.Time, bool)
	Set(fileKey string, expiry time.Duration, filename, url string, expiresAt time.Time)
}

type fileService struct {
	caseRepo repository.CaseRepository
	fileRepo repository.FileRepository
	storage  repository.ObjectStorage
	stats    FileStatsCache
	urls     DownloadURLCache
	logger   zerolog.Logger
	config   UploadConfig
	now      func() time.Time
}

func NewFileService(
	caseRepo repository.CaseRepository,
	fileRepo repository.FileRepository,
	storage repository.ObjectStorage,
	stats FileStatsCache,
	urls DownloadURLCache,
	logger zerolog.Logger,
	config UploadConfig,
) FileService {
	return &fileService{
		caseRepo: caseRepo,
		fileRepo: fileRepo,
		storage:  storage,
		stats:    stats,
		urls:     urls,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
}

func (s *fileService) GetFile(ctx context.Context, fileKey string) (*models.FileRecord, error) {
	record, err := s.fileRepo.GetByKey(ctx, fileKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "file", ID: fileKey}
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return record, nil
}

func (s *fileService) ListFiles(ctx context.Context, filter models.FileFilter) (*models.FileListResponse, error) {
	if err := s.requireCase(ctx, filter.CaseID); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	for _, st := range filter.Statuses {
		if !models.IsValidFileStatus(st.String()) {
			verr.add("status %q is not valid", st)
		}
	}
	for _, ct := range filter.CaptureTypes {
		if !models.IsValidCaptureType(ct.String()) {
			verr.add("capture_type %q is not valid", ct)
		}
	}
	if filter.MinDuration != nil && filter.MaxDuration != nil && *filter.MinDuration > *filter.MaxDuration {
		verr.add("min_duration must not exceed max_duration")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	filter.SortBy, filter.SortOrder = query.NormalizeFileSort(filter.SortBy, filter.SortOrder)
	page := query.NewPagination(filter.Page, filter.Limit)

	files, total, err := s.fileRepo.List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return &models.FileListResponse{
		Files:      files,
		Pagination: page.Info(total),
	}, nil
}

func (s *fileService) GetDownloadURL(ctx context.Context, fileKey string, expiresIn *int64, filename string) (*models.DownloadURLResponse, error) {
	expiry := s.config.DefaultURLExpiry
	if expiresIn != nil {
		expiry = time.Duration(*expiresIn) * time.Second
		if expiry < s.config.MinURLExpiry || expiry > s.config.MaxURLExpiry {
			return nil, NewValidationError(fmt.Sprintf("expires_in must be between %d and %d seconds",
				int64(s.config.MinURLExpiry.Seconds()), int64(s.config.MaxURLExpiry.Seconds())))
		}
	}

	record, err := s.GetFile(ctx, fileKey)
	if err != nil {
		return nil, err
	}
	if record.Status != models.FileStatusCompleted {
		return nil, NewValidationError(fmt.Sprintf("file is not available for download: status %s", record.Status))
	}

	if filename == "" {
		filename = record.OriginalName
	}
	if filename == "" {
		filename = record.FileName
	}

	if s.urls != nil {
		if u, expiresAt, ok := s.urls.Get(fileKey, expiry, filename); ok {
			return &models.DownloadURLResponse{
				FileKey:   fileKey,
				URL:       u,
				ExpiresIn: int64(time.Until(expiresAt).Seconds()),
				ExpiresAt: expiresAt,
			}, nil
		}
	}

	url, err := s.storage.DownloadURL(ctx, fileKey, expiry, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	expiresAt := s.now().UTC().Add(expiry)

	if s.urls != nil {
		s.urls.Set(fileKey, expiry, filename, url, expiresAt)
	}

	s.logger.Debug().
		Str("file_key", fileKey).
		Dur("expiry", expiry).
		Msg("Generated download URL")

	return &models.DownloadURLResponse{
		FileKey:   fileKey,
		URL:       url,
		ExpiresIn: int64(expiry.Seconds()),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *fileService) GetFileStats(ctx context.Context, caseID string) (*models.FileStats, error) {
	if err := s.requireCase(ctx, caseID); err != nil {
		return nil, err
	}

	if s.stats != nil {
		if stats, ok := s.stats.GetFileStats(ctx, caseID); ok {
			return stats, nil
		}
	}

	stats, err := s.fileRepo.GetStats(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}

	if s.stats != nil {
		s.stats.SetFileStats(ctx, caseID, stats)
	}
	return stats, nil
}

// GetCaseFileStats показывает агрегат кейса рядом с фактической статистикой,
// чтобы расхождение было видно.
func (s *fileService) GetCaseFileStats(ctx context.Context, caseID string) (*models.CaseFileStatsResponse, error) {
	c, err := s.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "case", ID: caseID}
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	stats, err := s.GetFileStats(ctx, caseID)
	if err != nil {
		return nil, err
	}

	totals, err := s.fileRepo.GetTotalsByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum case files: %w", err)
	}

	return &models.CaseFileStatsResponse{
		CaseID:   caseID,
		Metadata: c.Metadata,
		Files:    *stats,
		InSync:   reconciler.InSync(c.Metadata, *totals),
	}, nil
}

func (s *fileService) requireCase(ctx context.Context, caseID string) error {
	if caseID == "" {
		return nil
	}
	exists, err := s.caseRepo.Exists(ctx, caseID)
	if err != nil {
		return fmt.Errorf("failed to check case: %w", err)
	}
	if !exists {
		return &NotFoundError{Resource: "case", ID: caseID}
	}
	return nil
}

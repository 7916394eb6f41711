package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service/reconciler"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/pkg/hash"
)

type UploadService interface {
	IssueUploadSlot(ctx context.Context, req *models.IssueUploadSlotRequest, requester models.Requester) (*models.UploadSlotResponse, error)
	ConfirmUpload(ctx context.Context, req *models.ConfirmUploadRequest) (*models.ConfirmUploadResponse, error)
}

type UploadConfig struct {
	AllowedTypes     []string
	MaxFileSize      int64
	DefaultURLExpiry time.Duration
	MinURLExpiry     time.Duration
	MaxURLExpiry     time.Duration
	MaxBulkKeys      int
}

type uploadService struct {
	caseRepo repository.CaseRepository
	fileRepo repository.FileRepository
	storage  repository.ObjectStorage
	metadata MetadataService
	logger   zerolog.Logger
	config   UploadConfig
	now      func() time.Time
}

func NewUploadService(
	caseRepo repository.CaseRepository,
	fileRepo repository.FileRepository,
	storage repository.ObjectStorage,
	metadata MetadataService,
	logger zerolog.Logger,
	config UploadConfig,
) UploadService {
	return &uploadService{
		caseRepo: caseRepo,
		fileRepo: fileRepo,
		storage:  storage,
		metadata: metadata,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
}

func (s *uploadService) IssueUploadSlot(ctx context.Context, req *models.IssueUploadSlotRequest, requester models.Requester) (*models.UploadSlotResponse, error) {
	method, expiry, err := s.validateSlot(req)
	if err != nil {
		return nil, err
	}

	exists, err := s.caseRepo.Exists(ctx, req.CaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check case: %w", err)
	}
	if !exists {
		return nil, &NotFoundError{Resource: "case", ID: req.CaseID}
	}

	now := s.now().UTC()
	fileKey := buildFileKey(req.CaseID, models.CaptureType(req.CaptureType), now, fileExtension(req.FileName, req.FileType))

	var presigned *repository.PresignedUpload
	if method == models.UploadMethodPost {
		maxSize := s.config.MaxFileSize
		if req.FileSize != nil && *req.FileSize > 0 {
			maxSize = *req.FileSize
		}
		presigned, err = s.storage.PresignPostForm(ctx, fileKey, req.FileType, maxSize, expiry)
	} else {
		presigned, err = s.storage.PresignUpload(ctx, fileKey, req.FileType, expiry)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	var declaredSize int64
	if req.FileSize != nil {
		declaredSize = *req.FileSize
	}

	record := &models.FileRecord{
		ID:           uuid.New().String(),
		FileKey:      fileKey,
		FileName:     displayName(req.FileName),
		OriginalName: req.FileName,
		MimeType:     req.FileType,
		FileSize:     declaredSize,
		CaptureType:  models.CaptureType(req.CaptureType),
		CaseID:       req.CaseID,
		UploadedBy:   requester.ID,
		Status:       models.FileStatusPending,
		Description:  req.Description,
		SourceURL:    req.SourceURL,
		SessionID:    req.SessionID,
		Video:        req.Video,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.fileRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save file record: %w", err)
	}

	s.logger.Info().
		Str("file_id", record.ID).
		Str("file_key", fileKey).
		Str("case_id", req.CaseID).
		Str("capture_type", req.CaptureType).
		Str("method", string(method)).
		Str("uploaded_by", requester.ID).
		Msg("Upload slot issued")

	return &models.UploadSlotResponse{
		FileID:    record.ID,
		FileKey:   fileKey,
		UploadURL: presigned.URL,
		Method:    method,
		Fields:    presigned.Fields,
		ExpiresIn: int64(expiry.Seconds()),
		ExpiresAt: presigned.ExpiresAt,
	}, nil
}

// validateSlot собирает все нарушения разом.
func (s *uploadService) validateSlot(req *models.IssueUploadSlotRequest) (models.UploadMethod, time.Duration, error) {
	verr := &ValidationError{}

	if strings.TrimSpace(req.CaseID) == "" {
		verr.add("case_id is required")
	}
	if strings.TrimSpace(req.FileName) == "" {
		verr.add("file_name is required")
	}
	if !s.isAllowedType(req.FileType, req.FileName) {
		verr.add("file type %q is not allowed", req.FileType)
	}
	if req.FileSize != nil {
		if *req.FileSize < 0 {
			verr.add("file_size must not be negative")
		} else if *req.FileSize > s.config.MaxFileSize {
			verr.add("file_size %d exceeds limit of %d bytes", *req.FileSize, s.config.MaxFileSize)
		}
	}
	if !models.IsValidCaptureType(req.CaptureType) {
		verr.add("capture_type must be one of: screenshot, video")
	}

	method := models.UploadMethod(strings.ToLower(req.UploadMethod))
	if method == "" {
		method = models.UploadMethodPut
	}
	if method != models.UploadMethodPut && method != models.UploadMethodPost {
		verr.add("upload_method must be one of: put, post")
	}

	expiry := s.config.DefaultURLExpiry
	if req.ExpiresIn != nil {
		expiry = time.Duration(*req.ExpiresIn) * time.Second
		if expiry < s.config.MinURLExpiry || expiry > s.config.MaxURLExpiry {
			verr.add("expires_in must be between %d and %d seconds",
				int64(s.config.MinURLExpiry.Seconds()), int64(s.config.MaxURLExpiry.Seconds()))
		}
	}

	return method, expiry, verr.orNil()
}

func (s *uploadService) ConfirmUpload(ctx context.Context, req *models.ConfirmUploadRequest) (*models.ConfirmUploadResponse, error) {
	if req.FileID == "" && req.FileKey == "" {
		return nil, NewValidationError("file_id or file_key is required")
	}
	if req.ActualFileSize != nil && *req.ActualFileSize < 0 {
		return nil, NewValidationError("actual_file_size must not be negative")
	}

	checksum := ""
	if req.Checksum != "" {
		sum, err := hash.Parse(req.Checksum, hash.SHA256)
		if err != nil {
			return nil, NewValidationError("checksum: " + err.Error())
		}
		checksum = sum.String()
	}

	record, err := s.findRecord(ctx, req.FileID, req.FileKey)
	if err != nil {
		return nil, err
	}

	switch record.Status {
	case models.FileStatusFailed:
		return nil, NewValidationError("cannot confirm a failed upload")
	case models.FileStatusCompleted:
		return &models.ConfirmUploadResponse{File: record, AlreadyConfirmed: true}, nil
	}

	info, err := s.storage.HeadObject(ctx, record.FileKey)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return nil, s.failUpload(ctx, record)
		}
		return nil, fmt.Errorf("failed to verify object: %w", err)
	}

	size := info.Size
	if req.ActualFileSize != nil {
		size = *req.ActualFileSize
		if size != info.Size {
			s.logger.Warn().
				Str("file_key", record.FileKey).
				Int64("reported_size", size).
				Int64("storage_size", info.Size).
				Msg("Client reported size differs from storage")
		}
	}

	lastModified := info.LastModified
	completion := repository.Completion{
		FileSize: size,
		Checksum: checksum,
		Storage: models.StorageMetadata{
			ContentType:   info.ContentType,
			ContentLength: info.Size,
			LastModified:  &lastModified,
			ETag:          info.ETag,
			StorageClass:  info.StorageClass,
		},
		UploadedAt: s.now().UTC(),
	}

	transitioned, err := s.fileRepo.MarkCompleted(ctx, record.ID, completion)
	if err != nil {
		return nil, fmt.Errorf("failed to complete upload: %w", err)
	}
	if !transitioned {
		return s.lostTransition(ctx, record.ID)
	}

	record.Status = models.FileStatusCompleted
	record.FileSize = completion.FileSize
	record.Checksum = completion.Checksum
	record.Storage = completion.Storage
	record.UploadedAt = &completion.UploadedAt
	record.UpdatedAt = completion.UploadedAt

	warning := s.metadata.Reconcile(ctx, record, reconciler.Completed(record.CaptureType, record.FileSize))

	s.logger.Info().
		Str("file_id", record.ID).
		Str("file_key", record.FileKey).
		Str("case_id", record.CaseID).
		Int64("size", record.FileSize).
		Msg("Upload confirmed")

	return &models.ConfirmUploadResponse{
		File:    record,
		Warning: warningText(warning),
	}, nil
}

// failUpload фиксирует расхождение с хранилищем: запись не остается в pending.
func (s *uploadService) failUpload(ctx context.Context, record *models.FileRecord) error {
	marked, err := s.fileRepo.MarkFailed(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("failed to mark upload failed: %w", err)
	}
	if marked {
		record.Status = models.FileStatusFailed
		s.metadata.NotifyFailed(ctx, record)
		s.logger.Warn().
			Str("file_id", record.ID).
			Str("file_key", record.FileKey).
			Msg("Upload confirmed but object is missing in storage")
	}
	return &StorageMismatchError{FileKey: record.FileKey}
}

// lostTransition: параллельный запрос успел перевести запись раньше.
func (s *uploadService) lostTransition(ctx context.Context, id string) (*models.ConfirmUploadResponse, error) {
	current, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "file", ID: id}
		}
		return nil, fmt.Errorf("failed to reload file record: %w", err)
	}
	if current.Status == models.FileStatusCompleted {
		return &models.ConfirmUploadResponse{File: current, AlreadyConfirmed: true}, nil
	}
	return nil, NewValidationError("cannot confirm a failed upload")
}

func (s *uploadService) findRecord(ctx context.Context, fileID, fileKey string) (*models.FileRecord, error) {
	var (
		record *models.FileRecord
		err    error
		ref    = fileID
	)
	if fileID != "" {
		record, err = s.fileRepo.GetByID(ctx, fileID)
	} else {
		ref = fileKey
		record, err = s.fileRepo.GetByKey(ctx, fileKey)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "file", ID: ref}
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return record, nil
}

func (s *uploadService) isAllowedType(mimeType, fileName string) bool {
	if mimeType == "" {
		return false
	}
	if len(s.config.AllowedTypes) == 0 {
		return true
	}

	mimeType = strings.ToLower(mimeType)
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, allowed := range s.config.AllowedTypes {
		allowed = strings.ToLower(allowed)
		switch {
		case strings.HasPrefix(allowed, "."):
			// Проверка по расширению
			if ext == allowed {
				return true
			}
		case strings.HasSuffix(allowed, "/*"):
			if strings.HasPrefix(mimeType, strings.TrimSuffix(allowed, "*")) {
				return true
			}
		case mimeType == allowed:
			return true
		}
	}

	return false
}

var mimeExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"image/bmp":       ".bmp",
	"video/webm":      ".webm",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/x-msvideo": ".avi",
}

// fileExtension берет расширение из имени файла, иначе из MIME-типа.
func fileExtension(fileName, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext != "" && len(ext) <= 10 && !strings.ContainsAny(ext, "/\\ ") {
		return ext
	}
	return mimeExtensions[strings.ToLower(mimeType)]
}

// buildFileKey: cases/{caseId}/{captureType}s/{YYYY}/{MM}/{DD}/{unixMillis}-{random8}{ext}.
func buildFileKey(caseID string, captureType models.CaptureType, now time.Time, ext string) string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("cases/%s/%ss/%04d/%02d/%02d/%d-%s%s",
		caseID, captureType, now.Year(), now.Month(), now.Day(), now.UnixMilli(), random, ext)
}

func displayName(fileName string) string {
	name := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	// Удаляем небезопасные символы
	name = strings.ReplaceAll(name, "..", "")
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service/integration"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service/reconciler"
)

var reconciliationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "evidence_reconciliation_failures_total",
	Help: "Case metadata updates that could not be applied after a file lifecycle event.",
}, []string{"event"})

// StatsInvalidator сбрасывает закэшированную статистику кейса.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, caseID string)
}

type MetadataService interface {
	// Reconcile применяет событие к агрегату кейса. Ошибка не прерывает
	// файловую операцию и возвращается как предупреждение.
	Reconcile(ctx context.Context, file *models.FileRecord, event reconciler.Event) *ReconciliationWarning
	// NotifyFailed публикует событие о неудачной загрузке, агрегат не меняется.
	NotifyFailed(ctx context.Context, file *models.FileRecord)
	Rebuild(ctx context.Context, caseID string, requester models.Requester) (*models.RebuildMetadataResponse, error)
}

type metadataService struct {
	caseRepo  repository.CaseRepository
	fileRepo  repository.FileRepository
	publisher integration.EventPublisher
	stats     StatsInvalidator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewMetadataService(
	caseRepo repository.CaseRepository,
	fileRepo repository.FileRepository,
	publisher integration.EventPublisher,
	stats StatsInvalidator,
	logger zerolog.Logger,
) MetadataService {
	if publisher == nil {
		publisher = integration.NewNoopPublisher()
	}
	return &metadataService{
		caseRepo:  caseRepo,
		fileRepo:  fileRepo,
		publisher: publisher,
		stats:     stats,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *metadataService) Reconcile(ctx context.Context, file *models.FileRecord, event reconciler.Event) *ReconciliationWarning {
	delta := reconciler.DeltaFor(event, s.now())

	meta, err := s.caseRepo.ApplyMetadataDelta(ctx, file.CaseID, delta)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = &NotFoundError{Resource: "case", ID: file.CaseID}
		}
		warning := &ReconciliationWarning{CaseID: file.CaseID, Event: string(event.Kind), Err: err}

		reconciliationFailures.WithLabelValues(string(event.Kind)).Inc()
		s.logger.Warn().
			Err(err).
			Str("case_id", file.CaseID).
			Str("file_key", file.FileKey).
			Str("event", string(event.Kind)).
			Int64("file_size", event.Size).
			Msg("Case metadata drifted from file records")

		return warning
	}

	s.invalidate(ctx, file.CaseID)

	s.logger.Debug().
		Str("case_id", file.CaseID).
		Str("event", string(event.Kind)).
		Int64("total_screenshots", meta.TotalScreenshots).
		Int64("total_videos", meta.TotalVideos).
		Int64("total_file_size", meta.TotalFileSize).
		Msg("Case metadata reconciled")

	eventType := models.EventFileCompleted
	if event.Kind == reconciler.FileRemoved {
		eventType = models.EventFileRemoved
	}
	s.publish(ctx, eventType, file)

	return nil
}

func (s *metadataService) NotifyFailed(ctx context.Context, file *models.FileRecord) {
	s.publish(ctx, models.EventFileFailed, file)
}

func (s *metadataService) Rebuild(ctx context.Context, caseID string, requester models.Requester) (*models.RebuildMetadataResponse, error) {
	if !requester.IsElevated() {
		return nil, &PermissionError{Action: "rebuild case metadata"}
	}

	c, err := s.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "case", ID: caseID}
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	totals, err := s.fileRepo.GetTotalsByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum case files: %w", err)
	}

	current := reconciler.FromTotals(*totals)
	if err := s.caseRepo.SetMetadata(ctx, caseID, current); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "case", ID: caseID}
		}
		return nil, fmt.Errorf("failed to store case metadata: %w", err)
	}

	s.invalidate(ctx, caseID)

	s.logger.Info().
		Str("case_id", caseID).
		Str("requested_by", requester.ID).
		Bool("was_in_sync", reconciler.InSync(c.Metadata, *totals)).
		Msg("Case metadata rebuilt")

	return &models.RebuildMetadataResponse{
		CaseID:   caseID,
		Previous: c.Metadata,
		Current:  current,
	}, nil
}

func (s *metadataService) invalidate(ctx context.Context, caseID string) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, caseID)
	}
}

// publish не влияет на результат операции: брокер вторичен.
func (s *metadataService) publish(ctx context.Context, eventType models.FileEventType, file *models.FileRecord) {
	event := &models.FileEvent{
		Type:        eventType,
		FileID:      file.ID,
		FileKey:     file.FileKey,
		CaseID:      file.CaseID,
		CaptureType: file.CaptureType,
		FileSize:    file.FileSize,
		UploadedBy:  file.UploadedBy,
		Timestamp:   s.now().Unix(),
	}

	if err := s.publisher.PublishFileEvent(ctx, event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("event", string(eventType)).
			Str("file_key", file.FileKey).
			Msg("Failed to publish file event")
	}
}

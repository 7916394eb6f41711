package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/query"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/repository"
)

const maxTitleLength = 200

type CaseService interface {
	CreateCase(ctx context.Context, req *models.CreateCaseRequest, requester models.Requester) (*models.Case, error)
	GetCase(ctx context.Context, id string) (*models.Case, error)
	UpdateCase(ctx context.Context, id string, patch models.CasePatch) (*models.Case, error)
	DeleteCase(ctx context.Context, id string, requester models.Requester) error
	ListCases(ctx context.Context, filter models.CaseFilter) (*models.CaseListResponse, error)
	ExportCases(ctx context.Context, filter models.CaseFilter, w io.Writer) error
	GetStats(ctx context.Context) (*models.CaseStats, error)
}

type CaseStatsCache interface {
	StatsInvalidator
	GetCaseStats(ctx context.Context) (*models.CaseStats, bool)
	SetCaseStats(ctx context.Context, stats *models.CaseStats)
}

type caseService struct {
	caseRepo repository.CaseRepository
	fileRepo repository.FileRepository
	storage  repository.ObjectStorage
	cache    CaseStatsCache
	urls     URLInvalidator
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCaseService(
	caseRepo repository.CaseRepository,
	fileRepo repository.FileRepository,
	storage repository.ObjectStorage,
	cache CaseStatsCache,
	urls URLInvalidator,
	logger zerolog.Logger,
) CaseService {
	return &caseService{
		caseRepo: caseRepo,
		fileRepo: fileRepo,
		storage:  storage,
		cache:    cache,
		urls:     urls,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *caseService) CreateCase(ctx context.Context, req *models.CreateCaseRequest, requester models.Requester) (*models.Case, error) {
	verr := &ValidationError{}
	title := strings.TrimSpace(req.Title)
	validateTitle(verr, title)

	status := models.CaseStatusActive
	if req.Status != "" {
		if !models.IsValidCaseStatus(req.Status) {
			verr.add("status %q is not valid", req.Status)
		}
		status = models.CaseStatus(req.Status)
	}

	priority := models.PriorityMedium
	if req.Priority != "" {
		if !models.IsValidCasePriority(req.Priority) {
			verr.add("priority %q is not valid", req.Priority)
		}
		priority = models.CasePriority(req.Priority)
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &models.Case{
		ID:          uuid.New().String(),
		Title:       title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
		Tags:        normalizeTags(req.Tags),
		AssignedTo:  req.AssignedTo,
		CreatedBy:   requester.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.caseRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	s.invalidate(ctx, "")

	s.logger.Info().
		Str("case_id", c.ID).
		Str("display_id", c.DisplayID).
		Str("created_by", requester.ID).
		Msg("Case created")

	return c, nil
}

func (s *caseService) GetCase(ctx context.Context, id string) (*models.Case, error) {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "case", ID: id}
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// UpdateCase меняет только переданные поля. Агрегат через патч не меняется.
func (s *caseService) UpdateCase(ctx context.Context, id string, patch models.CasePatch) (*models.Case, error) {
	verr := &ValidationError{}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		patch.Title = &t
		validateTitle(verr, t)
	}
	if patch.Status != nil && !models.IsValidCaseStatus(patch.Status.String()) {
		verr.add("status %q is not valid", *patch.Status)
	}
	if patch.Priority != nil && !models.IsValidCasePriority(patch.Priority.String()) {
		verr.add("priority %q is not valid", *patch.Priority)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	c, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.Priority != nil {
		c.Priority = *patch.Priority
	}
	if patch.Tags != nil {
		c.Tags = normalizeTags(*patch.Tags)
	}
	if patch.AssignedTo != nil {
		c.AssignedTo = *patch.AssignedTo
	}
	c.UpdatedAt = s.now().UTC()

	if err := s.caseRepo.Update(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "case", ID: id}
		}
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	if patch.Status != nil || patch.Priority != nil {
		s.invalidate(ctx, id)
	}

	return c, nil
}

func (s *caseService) DeleteCase(ctx context.Context, id string, requester models.Requester) error {
	c, err := s.GetCase(ctx, id)
	if err != nil {
		return err
	}

	if c.CreatedBy != requester.ID && !requester.IsElevated() {
		return &PermissionError{Action: "delete case " + id}
	}

	keys, err := s.fileRepo.ListKeysByCase(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list case files: %w", err)
	}

	// Объекты удаляются по возможности, записи уходят каскадом вместе с кейсом
	for _, key := range keys {
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			s.logger.Warn().
				Err(err).
				Str("case_id", id).
				Str("file_key", key).
				Msg("Failed to delete case object from storage")
		}
		if s.urls != nil {
			s.urls.Remove(key)
		}
	}

	if err := s.caseRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Resource: "case", ID: id}
		}
		return fmt.Errorf("failed to delete case: %w", err)
	}

	s.invalidate(ctx, id)

	s.logger.Info().
		Str("case_id", id).
		Str("display_id", c.DisplayID).
		Int("files", len(keys)).
		Str("deleted_by", requester.ID).
		Msg("Case deleted")

	return nil
}

func (s *caseService) ListCases(ctx context.Context, filter models.CaseFilter) (*models.CaseListResponse, error) {
	filter.SortBy, filter.SortOrder = query.NormalizeCaseSort(filter.SortBy, filter.SortOrder)
	page := query.NewPagination(filter.Page, filter.Limit)

	cases, total, err := s.caseRepo.List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	return &models.CaseListResponse{
		Cases:      cases,
		Pagination: page.Info(total),
	}, nil
}

func (s *caseService) ExportCases(ctx context.Context, filter models.CaseFilter, w io.Writer) error {
	filter.SortBy, filter.SortOrder = query.NormalizeCaseSort(filter.SortBy, filter.SortOrder)

	cases, err := s.caseRepo.ListAll(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list cases for export: %w", err)
	}

	if err := query.WriteCasesCSV(w, cases); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func (s *caseService) GetStats(ctx context.Context) (*models.CaseStats, error) {
	if s.cache != nil {
		if stats, ok := s.cache.GetCaseStats(ctx); ok {
			return stats, nil
		}
	}

	stats, err := s.caseRepo.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get case stats: %w", err)
	}

	files, err := s.fileRepo.GetStats(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}
	stats.Files = *files

	if s.cache != nil {
		s.cache.SetCaseStats(ctx, stats)
	}
	return stats, nil
}

func (s *caseService) invalidate(ctx context.Context, caseID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, caseID)
	}
}

func validateTitle(verr *ValidationError, title string) {
	if title == "" {
		verr.add("title is required")
	} else if utf8.RuneCountInString(title) > maxTitleLength {
		verr.add("title must be at most %d characters", maxTitleLength)
	}
}

// normalizeTags: теги - множество, пустые и повторы отбрасываются.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

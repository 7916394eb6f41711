package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/query"
)

const caseColumns = `
	id, display_id, title, description, status, priority, tags,
	assigned_to, created_by, total_screenshots, total_videos,
	total_file_size, last_activity, created_at, updated_at`

type caseRepository struct {
	*PostgresRepository
}

func NewCaseRepository(db *sql.DB, logger zerolog.Logger) CaseRepository {
	return &caseRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *caseRepository) Create(ctx context.Context, c *models.Case) error {
	// Номер берется из последовательности, а не из COUNT(*), чтобы
	// параллельные создания не получали одинаковый display_id
	var number int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('case_display_seq')`).Scan(&number); err != nil {
		return fmt.Errorf("failed to allocate display id: %w", err)
	}
	c.DisplayID = models.FormatDisplayID(number)

	query := `
		INSERT INTO cases (
			id, display_id, title, description, status, priority, tags,
			assigned_to, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.DisplayID,
		c.Title,
		c.Description,
		c.Status,
		c.Priority,
		pq.Array(c.Tags),
		c.AssignedTo,
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)

	return err
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}

	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	c, err := scanCase(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (r *caseRepository) Exists(ctx context.Context, id string) (bool, error) {
	id, ok := parseID(id)
	if !ok {
		return false, nil
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cases WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Update меняет только редактируемые поля, агрегат не трогается.
func (r *caseRepository) Update(ctx context.Context, c *models.Case) error {
	id, ok := parseID(c.ID)
	if !ok {
		return ErrNotFound
	}

	query := `
		UPDATE cases SET
			title = $2,
			description = $3,
			status = $4,
			priority = $5,
			tags = $6,
			assigned_to = $7,
			updated_at = $8
		WHERE id = $1
	`

	updated, err := r.execOne(ctx, query,
		id,
		c.Title,
		c.Description,
		c.Status,
		c.Priority,
		pq.Array(c.Tags),
		c.AssignedTo,
		c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}

	return nil
}

func (r *caseRepository) Delete(ctx context.Context, id string) error {
	id, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}

	deleted, err := r.execOne(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}

	return nil
}

func (r *caseRepository) List(ctx context.Context, filter models.CaseFilter, page query.Pagination) ([]*models.Case, int64, error) {
	whereSQL, args, argCount := buildCaseWhere(filter, 1)

	// Счетчик и страница строятся по одному и тому же WHERE
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM cases %s", whereSQL)
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM cases
		%s
		%s
		LIMIT $%d OFFSET $%d
	`, caseColumns, whereSQL, buildCaseOrderBy(filter.SortBy, filter.SortOrder), argCount, argCount+1)

	args = append(args, page.Limit, page.Offset())

	cases, err := r.queryCases(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}

	return cases, total, nil
}

func (r *caseRepository) ListAll(ctx context.Context, filter models.CaseFilter) ([]*models.Case, error) {
	whereSQL, args, _ := buildCaseWhere(filter, 1)

	listQuery := fmt.Sprintf(`SELECT %s FROM cases %s %s`,
		caseColumns, whereSQL, buildCaseOrderBy(filter.SortBy, filter.SortOrder))

	return r.queryCases(ctx, listQuery, args...)
}

func (r *caseRepository) ApplyMetadataDelta(ctx context.Context, id string, delta models.MetadataDelta) (*models.CaseMetadata, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}

	// Один UPDATE вместо read-modify-write: параллельные подтверждения
	// не теряют инкременты
	query := `
		UPDATE cases SET
			total_screenshots = GREATEST(0, total_screenshots + $2),
			total_videos = GREATEST(0, total_videos + $3),
			total_file_size = GREATEST(0, total_file_size + $4),
			last_activity = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING total_screenshots, total_videos, total_file_size, last_activity
	`

	meta := &models.CaseMetadata{}
	err := r.db.QueryRowContext(ctx, query,
		id,
		delta.Screenshots,
		delta.Videos,
		delta.FileSize,
		delta.At,
	).Scan(
		&meta.TotalScreenshots,
		&meta.TotalVideos,
		&meta.TotalFileSize,
		&meta.LastActivity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return meta, nil
}

func (r *caseRepository) SetMetadata(ctx context.Context, id string, meta models.CaseMetadata) error {
	id, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}

	query := `
		UPDATE cases SET
			total_screenshots = $2,
			total_videos = $3,
			total_file_size = $4,
			last_activity = $5,
			updated_at = NOW()
		WHERE id = $1
	`

	updated, err := r.execOne(ctx, query,
		id,
		meta.TotalScreenshots,
		meta.TotalVideos,
		meta.TotalFileSize,
		meta.LastActivity,
	)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotFound
	}

	return nil
}

func (r *caseRepository) GetStats(ctx context.Context) (*models.CaseStats, error) {
	stats := &models.CaseStats{
		ByStatus:   make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases`).Scan(&stats.TotalCases); err != nil {
		return nil, fmt.Errorf("failed to count cases: %w", err)
	}

	if err := r.countGrouped(ctx, "status", stats.ByStatus); err != nil {
		return nil, err
	}
	if err := r.countGrouped(ctx, "priority", stats.ByPriority); err != nil {
		return nil, err
	}

	return stats, nil
}

// countGrouped вызывается только с именами колонок из кода.
func (r *caseRepository) countGrouped(ctx context.Context, column string, into map[string]int64) error {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %[1]s, COUNT(*) FROM cases GROUP BY %[1]s", column))
	if err != nil {
		return fmt.Errorf("failed to count cases by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}

	return rows.Err()
}

func (r *caseRepository) queryCases(ctx context.Context, query string, args ...interface{}) ([]*models.Case, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := []*models.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

func scanCase(row rowScanner) (*models.Case, error) {
	c := &models.Case{}
	var tags []string
	var lastActivity *time.Time

	err := row.Scan(
		&c.ID,
		&c.DisplayID,
		&c.Title,
		&c.Description,
		&c.Status,
		&c.Priority,
		pq.Array(&tags),
		&c.AssignedTo,
		&c.CreatedBy,
		&c.Metadata.TotalScreenshots,
		&c.Metadata.TotalVideos,
		&c.Metadata.TotalFileSize,
		&lastActivity,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tags == nil {
		tags = []string{}
	}
	c.Tags = tags
	c.Metadata.LastActivity = lastActivity

	return c, nil
}

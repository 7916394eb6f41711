package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/query"
)

const fileColumns = `
	id, file_key, file_name, original_name, mime_type, file_size,
	capture_type, case_id, uploaded_by, status, description, source_url,
	session_id, checksum, video, storage, created_at, uploaded_at, updated_at`

type fileRepository struct {
	*PostgresRepository
}

func NewFileRepository(db *sql.DB, logger zerolog.Logger) FileRepository {
	return &fileRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *fileRepository) Create(ctx context.Context, f *models.FileRecord) error {
	video, err := marshalVideo(f.Video)
	if err != nil {
		return err
	}
	storage, err := json.Marshal(f.Storage)
	if err != nil {
		return fmt.Errorf("failed to marshal storage metadata: %w", err)
	}

	query := `
		INSERT INTO files (
			id, file_key, file_name, original_name, mime_type, file_size,
			capture_type, case_id, uploaded_by, status, description, source_url,
			session_id, checksum, video, storage, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		f.ID,
		f.FileKey,
		f.FileName,
		f.OriginalName,
		f.MimeType,
		f.FileSize,
		f.CaptureType,
		f.CaseID,
		f.UploadedBy,
		f.Status,
		f.Description,
		f.SourceURL,
		f.SessionID,
		f.Checksum,
		video,
		string(storage),
		f.CreatedAt,
		f.UpdatedAt,
	)

	return err
}

func (r *fileRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
}

func (r *fileRepository) GetByKey(ctx context.Context, fileKey string) (*models.FileRecord, error) {
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE file_key = $1`, fileKey)
}

func (r *fileRepository) getOne(ctx context.Context, query string, arg string) (*models.FileRecord, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *fileRepository) MarkCompleted(ctx context.Context, id string, c Completion) (bool, error) {
	id, ok := parseID(id)
	if !ok {
		return false, nil
	}

	storage, err := json.Marshal(c.Storage)
	if err != nil {
		return false, fmt.Errorf("failed to marshal storage metadata: %w", err)
	}

	// Условие по status делает подтверждение идемпотентным:
	// повторный вызов не затронет ни одной строки
	query := `
		UPDATE files SET
			status = 'completed',
			file_size = $2,
			checksum = $3,
			storage = $4,
			uploaded_at = $5,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`

	return r.execOne(ctx, query, id, c.FileSize, c.Checksum, string(storage), c.UploadedAt)
}

func (r *fileRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	id, ok := parseID(id)
	if !ok {
		return false, nil
	}

	query := `
		UPDATE files SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	return r.execOne(ctx, query, id)
}

func (r *fileRepository) Delete(ctx context.Context, id string) (*models.FileRecord, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}

	// RETURNING отдает состояние строки на момент удаления, по нему
	// решается, нужно ли уменьшать агрегат кейса
	query := `DELETE FROM files WHERE id = $1 RETURNING ` + fileColumns

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (r *fileRepository) List(ctx context.Context, filter models.FileFilter, page query.Pagination) ([]*models.FileRecord, int64, error) {
	whereSQL, args, argCount := buildFileWhere(filter, 1)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM files %s", whereSQL)
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM files
		%s
		%s
		LIMIT $%d OFFSET $%d
	`, fileColumns, whereSQL, buildFileOrderBy(filter.SortBy, filter.SortOrder), argCount, argCount+1)

	args = append(args, page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	files := []*models.FileRecord{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, f)
	}

	return files, total, rows.Err()
}

func (r *fileRepository) ListKeysByCase(ctx context.Context, caseID string) ([]string, error) {
	caseID, ok := parseID(caseID)
	if !ok {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT file_key FROM files WHERE case_id = $1`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// GetStats считает только completed-файлы. Пустой caseID - по всем кейсам.
func (r *fileRepository) GetStats(ctx context.Context, caseID string) (*models.FileStats, error) {
	where := "WHERE status = 'completed'"
	args := []interface{}{}
	if caseID != "" {
		id, ok := parseID(caseID)
		if !ok {
			empty := query.BuildFileStats(nil)
			return &empty, nil
		}
		where += " AND case_id = $1"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT
			COUNT(*) as total_files,
			COALESCE(SUM(file_size), 0) as total_size,
			COUNT(CASE WHEN capture_type = 'screenshot' THEN 1 END) as screenshots,
			COUNT(CASE WHEN capture_type = 'video' THEN 1 END) as videos
		FROM files
		%s
	`, where)

	var screenshots, videos int64
	stats := &models.FileStats{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalFiles,
		&stats.TotalSize,
		&screenshots,
		&videos,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}

	stats.ByCaptureType = map[string]int64{
		models.CaptureScreenshot.String(): screenshots,
		models.CaptureVideo.String():      videos,
	}
	if stats.TotalFiles > 0 {
		stats.AverageFileSize = stats.TotalSize / stats.TotalFiles
	}

	largestQuery := fmt.Sprintf(`
		SELECT file_key, file_name, file_size
		FROM files
		%s
		ORDER BY file_size DESC, created_at ASC
		LIMIT 1
	`, where)

	largest := &models.LargestFile{}
	err = r.db.QueryRowContext(ctx, largestQuery, args...).Scan(
		&largest.FileKey,
		&largest.FileName,
		&largest.FileSize,
	)
	switch {
	case err == nil:
		stats.LargestFile = largest
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("failed to get largest file: %w", err)
	}

	return stats, nil
}

func (r *fileRepository) GetTotalsByCase(ctx context.Context, caseID string) (*models.FileTotals, error) {
	caseID, ok := parseID(caseID)
	if !ok {
		return &models.FileTotals{}, nil
	}

	query := `
		SELECT
			COUNT(CASE WHEN capture_type = 'screenshot' THEN 1 END),
			COUNT(CASE WHEN capture_type = 'video' THEN 1 END),
			COALESCE(SUM(file_size), 0),
			MAX(COALESCE(uploaded_at, created_at))
		FROM files
		WHERE case_id = $1 AND status = 'completed'
	`

	totals := &models.FileTotals{}
	err := r.db.QueryRowContext(ctx, query, caseID).Scan(
		&totals.Screenshots,
		&totals.Videos,
		&totals.TotalSize,
		&totals.LastActivity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get case totals: %w", err)
	}

	return totals, nil
}

func scanFile(row rowScanner) (*models.FileRecord, error) {
	f := &models.FileRecord{}
	var video, storage []byte

	err := row.Scan(
		&f.ID,
		&f.FileKey,
		&f.FileName,
		&f.OriginalName,
		&f.MimeType,
		&f.FileSize,
		&f.CaptureType,
		&f.CaseID,
		&f.UploadedBy,
		&f.Status,
		&f.Description,
		&f.SourceURL,
		&f.SessionID,
		&f.Checksum,
		&video,
		&storage,
		&f.CreatedAt,
		&f.UploadedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(video) > 0 {
		f.Video = &models.VideoMetadata{}
		if err := json.Unmarshal(video, f.Video); err != nil {
			return nil, fmt.Errorf("failed to decode video metadata: %w", err)
		}
	}
	if len(storage) > 0 {
		if err := json.Unmarshal(storage, &f.Storage); err != nil {
			return nil, fmt.Errorf("failed to decode storage metadata: %w", err)
		}
	}

	return f, nil
}

func marshalVideo(v *models.VideoMetadata) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal video metadata: %w", err)
	}
	// jsonb передается строкой: []byte lib/pq кодирует как bytea
	return string(data), nil
}

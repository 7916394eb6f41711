package repository

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/query"
)

// buildCaseWhere собирает WHERE для cases. Нумерация плейсхолдеров
// начинается с startArg, возвращается следующий свободный номер.
func buildCaseWhere(f models.CaseFilter, startArg int) (string, []interface{}, int) {
	whereClauses := []string{}
	args := []interface{}{}
	argCount := startArg

	if len(f.Statuses) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("status = ANY($%d)", argCount))
		args = append(args, pq.Array(toStrings(f.Statuses)))
		argCount++
	}
	if len(f.Priorities) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("priority = ANY($%d)", argCount))
		args = append(args, pq.Array(toStrings(f.Priorities)))
		argCount++
	}
	if len(f.Tags) > 0 {
		// && - пересечение массивов, то есть OR по тегам
		whereClauses = append(whereClauses, fmt.Sprintf("tags && $%d", argCount))
		args = append(args, pq.Array(f.Tags))
		argCount++
	}
	if f.AssignedTo != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("assigned_to = $%d", argCount))
		args = append(args, f.AssignedTo)
		argCount++
	}
	if f.CreatedBy != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("created_by = $%d", argCount))
		args = append(args, f.CreatedBy)
		argCount++
	}
	if f.CreatedAfter != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("created_at >= $%d", argCount))
		args = append(args, *f.CreatedAfter)
		argCount++
	}
	if f.CreatedBefore != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("created_at <= $%d", argCount))
		args = append(args, *f.CreatedBefore)
		argCount++
	}
	if f.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(title ILIKE $%[1]d OR description ILIKE $%[1]d OR display_id ILIKE $%[1]d OR id::text ILIKE $%[1]d)",
			argCount))
		args = append(args, likePattern(f.Search))
		argCount++
	}

	return joinWhere(whereClauses), args, argCount
}

func buildCaseOrderBy(sortBy, order string) string {
	sortBy, order = query.NormalizeCaseSort(sortBy, order)

	var column string
	switch sortBy {
	case models.CaseSortTitle:
		column = "LOWER(title)"
	case models.CaseSortUpdatedAt:
		column = "updated_at"
	case models.CaseSortPriority:
		column = "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'critical' THEN 4 ELSE 0 END"
	case models.CaseSortStatus:
		column = "status"
	case models.CaseSortFileCount:
		column = "(total_screenshots + total_videos)"
	case models.CaseSortTotalSize:
		column = "total_file_size"
	default:
		column = "created_at"
	}

	return fmt.Sprintf("ORDER BY %s %s, created_at ASC, id ASC", column, strings.ToUpper(order))
}

func buildFileWhere(f models.FileFilter, startArg int) (string, []interface{}, int) {
	whereClauses := []string{}
	args := []interface{}{}
	argCount := startArg

	if f.CaseID != "" {
		if id, ok := parseID(f.CaseID); ok {
			whereClauses = append(whereClauses, fmt.Sprintf("case_id = $%d", argCount))
			args = append(args, id)
			argCount++
		} else {
			whereClauses = append(whereClauses, "FALSE")
		}
	}
	if len(f.Statuses) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("status = ANY($%d)", argCount))
		args = append(args, pq.Array(toStrings(f.Statuses)))
		argCount++
	}
	if len(f.CaptureTypes) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("capture_type = ANY($%d)", argCount))
		args = append(args, pq.Array(toStrings(f.CaptureTypes)))
		argCount++
	}
	if f.UploadedBy != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("uploaded_by = $%d", argCount))
		args = append(args, f.UploadedBy)
		argCount++
	}
	if f.SessionID != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("session_id = $%d", argCount))
		args = append(args, f.SessionID)
		argCount++
	}
	if f.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(file_name ILIKE $%[1]d OR original_name ILIKE $%[1]d OR description ILIKE $%[1]d OR source_url ILIKE $%[1]d)",
			argCount))
		args = append(args, likePattern(f.Search))
		argCount++
	}

	// Видео-фильтры работают только по записям с заполненным video
	if f.MinDuration != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("(video->>'duration')::float8 >= $%d", argCount))
		args = append(args, *f.MinDuration)
		argCount++
	}
	if f.MaxDuration != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("(video->>'duration')::float8 <= $%d", argCount))
		args = append(args, *f.MaxDuration)
		argCount++
	}
	if f.Width != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("(video->>'width')::int = $%d", argCount))
		args = append(args, *f.Width)
		argCount++
	}
	if f.Height != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("(video->>'height')::int = $%d", argCount))
		args = append(args, *f.Height)
		argCount++
	}
	if f.Codec != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("LOWER(video->>'codec') = LOWER($%d)", argCount))
		args = append(args, f.Codec)
		argCount++
	}
	if f.HasAudio != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("(video->>'has_audio')::boolean = $%d", argCount))
		args = append(args, *f.HasAudio)
		argCount++
	}

	return joinWhere(whereClauses), args, argCount
}

func buildFileOrderBy(sortBy, order string) string {
	sortBy, order = query.NormalizeFileSort(sortBy, order)

	var column string
	switch sortBy {
	case models.FileSortName:
		column = "LOWER(file_name)"
	case models.FileSortSize:
		column = "file_size"
	case models.FileSortDuration:
		column = "COALESCE((video->>'duration')::float8, 0)"
	case models.FileSortResolution:
		column = "COALESCE((video->>'width')::bigint, 0) * COALESCE((video->>'height')::bigint, 0)"
	default:
		column = "created_at"
	}

	return fmt.Sprintf("ORDER BY %s %s, created_at ASC, id ASC", column, strings.ToUpper(order))
}

func joinWhere(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(clauses, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

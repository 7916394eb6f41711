package query

import (
	"strings"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

// MatchCase повторяет в памяти условия WHERE из Postgres-репозитория.
func MatchCase(c *models.Case, f models.CaseFilter) bool {
	if len(f.Statuses) > 0 && !containsValue(f.Statuses, c.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsValue(f.Priorities, c.Priority) {
		return false
	}
	if len(f.Tags) > 0 && !anyTag(c.Tags, f.Tags) {
		return false
	}
	if f.AssignedTo != "" && c.AssignedTo != f.AssignedTo {
		return false
	}
	if f.CreatedBy != "" && c.CreatedBy != f.CreatedBy {
		return false
	}
	if f.CreatedAfter != nil && c.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && c.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	if f.Search != "" && !containsFold(f.Search, c.Title, c.Description, c.DisplayID, c.ID) {
		return false
	}
	return true
}

func MatchFile(file *models.FileRecord, f models.FileFilter) bool {
	if f.CaseID != "" && file.CaseID != f.CaseID {
		return false
	}
	if len(f.Statuses) > 0 && !containsValue(f.Statuses, file.Status) {
		return false
	}
	if len(f.CaptureTypes) > 0 && !containsValue(f.CaptureTypes, file.CaptureType) {
		return false
	}
	if f.UploadedBy != "" && file.UploadedBy != f.UploadedBy {
		return false
	}
	if f.SessionID != "" && file.SessionID != f.SessionID {
		return false
	}
	if f.Search != "" && !containsFold(f.Search, file.FileName, file.OriginalName, file.Description, file.SourceURL) {
		return false
	}
	if hasVideoFilter(f) {
		v := file.Video
		if v == nil {
			return false
		}
		if f.MinDuration != nil && v.Duration < *f.MinDuration {
			return false
		}
		if f.MaxDuration != nil && v.Duration > *f.MaxDuration {
			return false
		}
		if f.Width != nil && v.Width != *f.Width {
			return false
		}
		if f.Height != nil && v.Height != *f.Height {
			return false
		}
		if f.Codec != "" && !strings.EqualFold(v.Codec, f.Codec) {
			return false
		}
		if f.HasAudio != nil && v.HasAudio != *f.HasAudio {
			return false
		}
	}
	return true
}

func hasVideoFilter(f models.FileFilter) bool {
	return f.MinDuration != nil || f.MaxDuration != nil || f.Width != nil ||
		f.Height != nil || f.Codec != "" || f.HasAudio != nil
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func anyTag(have, want []string) bool {
	for _, w := range want {
		if containsValue(have, w) {
			return true
		}
	}
	return false
}

func containsFold(needle string, fields ...string) bool {
	needle = strings.ToLower(needle)
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

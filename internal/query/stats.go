package query

import (
	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

// BuildFileStats считает статистику только по completed-файлам,
// pending и failed пропускаются.
func BuildFileStats(files []*models.FileRecord) models.FileStats {
	stats := models.FileStats{
		ByCaptureType: map[string]int64{
			models.CaptureScreenshot.String(): 0,
			models.CaptureVideo.String():      0,
		},
	}

	for _, f := range files {
		if f.Status != models.FileStatusCompleted {
			continue
		}
		stats.TotalFiles++
		stats.TotalSize += f.FileSize
		stats.ByCaptureType[f.CaptureType.String()]++

		if stats.LargestFile == nil || f.FileSize > stats.LargestFile.FileSize {
			stats.LargestFile = &models.LargestFile{
				FileKey:  f.FileKey,
				FileName: f.FileName,
				FileSize: f.FileSize,
			}
		}
	}

	if stats.TotalFiles > 0 {
		stats.AverageFileSize = stats.TotalSize / stats.TotalFiles
	}

	return stats
}

func BuildCaseCounts(cases []*models.Case) models.CaseStats {
	stats := models.CaseStats{
		ByStatus:   make(map[string]int64),
		ByPriority: make(map[string]int64),
	}
	for _, c := range cases {
		stats.TotalCases++
		stats.ByStatus[c.Status.String()]++
		stats.ByPriority[c.Priority.String()]++
	}
	return stats
}

// BuildFileTotals суммирует completed-файлы для пересборки агрегата кейса.
func BuildFileTotals(files []*models.FileRecord) models.FileTotals {
	var totals models.FileTotals
	for _, f := range files {
		if f.Status != models.FileStatusCompleted {
			continue
		}
		if f.CaptureType == models.CaptureScreenshot {
			totals.Screenshots++
		} else {
			totals.Videos++
		}
		totals.TotalSize += f.FileSize

		activity := f.CreatedAt
		if f.UploadedAt != nil {
			activity = *f.UploadedAt
		}
		if totals.LastActivity == nil || activity.After(*totals.LastActivity) {
			a := activity
			totals.LastActivity = &a
		}
	}
	return totals
}

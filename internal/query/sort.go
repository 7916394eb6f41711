package query

import (
	"sort"
	"strings"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

// NormalizeCaseSort возвращает поле и направление сортировки кейсов,
// неизвестные значения заменяются на created_at desc.
func NormalizeCaseSort(sortBy, order string) (string, string) {
	switch sortBy {
	case models.CaseSortTitle, models.CaseSortCreatedAt, models.CaseSortUpdatedAt,
		models.CaseSortPriority, models.CaseSortStatus, models.CaseSortFileCount,
		models.CaseSortTotalSize:
	default:
		sortBy = models.CaseSortCreatedAt
	}
	return sortBy, normalizeOrder(order)
}

func NormalizeFileSort(sortBy, order string) (string, string) {
	switch sortBy {
	case models.FileSortName, models.FileSortSize, models.FileSortDate,
		models.FileSortDuration, models.FileSortResolution:
	default:
		sortBy = models.FileSortDate
	}
	return sortBy, normalizeOrder(order)
}

func normalizeOrder(order string) string {
	if strings.EqualFold(order, models.SortAsc) {
		return models.SortAsc
	}
	return models.SortDesc
}

// SortCases сортирует по выбранному полю, при равенстве по порядку создания.
func SortCases(cases []*models.Case, sortBy, order string) {
	sortBy, order = NormalizeCaseSort(sortBy, order)

	sort.SliceStable(cases, func(i, j int) bool {
		a, b := cases[i], cases[j]
		if c := compareCases(a, b, sortBy); c != 0 {
			if order == models.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return creationBefore(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano(), a.ID, b.ID)
	})
}

func compareCases(a, b *models.Case, sortBy string) int {
	switch sortBy {
	case models.CaseSortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case models.CaseSortUpdatedAt:
		return compareInt64(a.UpdatedAt.UnixNano(), b.UpdatedAt.UnixNano())
	case models.CaseSortPriority:
		return compareInt64(int64(models.PriorityRank(a.Priority)), int64(models.PriorityRank(b.Priority)))
	case models.CaseSortStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case models.CaseSortFileCount:
		return compareInt64(a.Metadata.TotalFiles(), b.Metadata.TotalFiles())
	case models.CaseSortTotalSize:
		return compareInt64(a.Metadata.TotalFileSize, b.Metadata.TotalFileSize)
	default:
		return compareInt64(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	}
}

func SortFiles(files []*models.FileRecord, sortBy, order string) {
	sortBy, order = NormalizeFileSort(sortBy, order)

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if c := compareFiles(a, b, sortBy); c != 0 {
			if order == models.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return creationBefore(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano(), a.ID, b.ID)
	})
}

func compareFiles(a, b *models.FileRecord, sortBy string) int {
	switch sortBy {
	case models.FileSortName:
		return strings.Compare(strings.ToLower(a.FileName), strings.ToLower(b.FileName))
	case models.FileSortSize:
		return compareInt64(a.FileSize, b.FileSize)
	case models.FileSortDuration:
		return compareFloat(videoDuration(a), videoDuration(b))
	case models.FileSortResolution:
		return compareInt64(videoPixels(a), videoPixels(b))
	default:
		return compareInt64(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	}
}

func creationBefore(a, b int64, idA, idB string) bool {
	if a != b {
		return a < b
	}
	return idA < idB
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func videoDuration(f *models.FileRecord) float64 {
	if f.Video == nil {
		return 0
	}
	return f.Video.Duration
}

func videoPixels(f *models.FileRecord) int64 {
	if f.Video == nil {
		return 0
	}
	return int64(f.Video.Width) * int64(f.Video.Height)
}

// Package reconciler пересчитывает агрегат кейса по событиям жизненного цикла файлов.
// Функции пакета чистые: время передается снаружи, состояние не хранится.
package reconciler

import (
	"time"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

type EventKind string

const (
	FileCompleted EventKind = "file_completed"
	FileRemoved   EventKind = "file_removed"
)

type Event struct {
	Kind        EventKind
	CaptureType models.CaptureType
	Size        int64
}

func Completed(captureType models.CaptureType, size int64) Event {
	return Event{Kind: FileCompleted, CaptureType: captureType, Size: size}
}

func Removed(captureType models.CaptureType, size int64) Event {
	return Event{Kind: FileRemoved, CaptureType: captureType, Size: size}
}

// DeltaFor переводит событие в относительное изменение агрегата.
// Хранилище применяет дельту одним атомарным UPDATE.
func DeltaFor(event Event, now time.Time) models.MetadataDelta {
	size := event.Size
	if size < 0 {
		size = 0
	}

	sign := int64(1)
	if event.Kind == FileRemoved {
		sign = -1
	}

	delta := models.MetadataDelta{
		FileSize: sign * size,
		At:       now.UTC(),
	}

	if event.CaptureType == models.CaptureScreenshot {
		delta.Screenshots = sign
	} else {
		delta.Videos = sign
	}

	return delta
}

// Apply возвращает новый агрегат. Счетчики не уходят ниже нуля.
func Apply(meta models.CaseMetadata, event Event, now time.Time) models.CaseMetadata {
	return DeltaFor(event, now).ApplyTo(meta)
}

// FromTotals собирает агрегат заново по сумме completed-файлов.
func FromTotals(totals models.FileTotals) models.CaseMetadata {
	return models.CaseMetadata{
		TotalScreenshots: totals.Screenshots,
		TotalVideos:      totals.Videos,
		TotalFileSize:    totals.TotalSize,
		LastActivity:     totals.LastActivity,
	}
}

// InSync сравнивает счетчики агрегата с фактическими суммами, время не учитывается.
func InSync(meta models.CaseMetadata, totals models.FileTotals) bool {
	return meta.TotalScreenshots == totals.Screenshots &&
		meta.TotalVideos == totals.Videos &&
		meta.TotalFileSize == totals.TotalSize
}

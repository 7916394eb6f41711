package models

type FileEventType string

const (
	EventFileCompleted FileEventType = "file.completed"
	EventFileFailed    FileEventType = "file.failed"
	EventFileRemoved   FileEventType = "file.deleted"
)

// FileEvent публикуется в брокер после изменения жизненного цикла файла.
type FileEvent struct {
	Type        FileEventType `json:"type"`
	FileID      string        `json:"file_id"`
	FileKey     string        `json:"file_key"`
	CaseID      string        `json:"case_id"`
	CaptureType CaptureType   `json:"capture_type"`
	FileSize    int64         `json:"file_size"`
	UploadedBy  string        `json:"uploaded_by"`
	Timestamp   int64         `json:"timestamp"`
}

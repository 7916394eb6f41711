package models

import (
	"time"
)

type FileRecord struct {
	ID           string          `json:"id" db:"id"`
	FileKey      string          `json:"file_key" db:"file_key"`
	FileName     string          `json:"file_name" db:"file_name"`
	OriginalName string          `json:"original_name" db:"original_name"`
	MimeType     string          `json:"mime_type" db:"mime_type"`
	FileSize     int64           `json:"file_size" db:"file_size"`
	CaptureType  CaptureType     `json:"capture_type" db:"capture_type"`
	CaseID       string          `json:"case_id" db:"case_id"`
	UploadedBy   string          `json:"uploaded_by" db:"uploaded_by"`
	Status       FileStatus      `json:"status" db:"status"` // pending, completed, failed
	Description  string          `json:"description,omitempty" db:"description"`
	SourceURL    string          `json:"source_url,omitempty" db:"source_url"`
	SessionID    string          `json:"session_id,omitempty" db:"session_id"`
	Checksum     string          `json:"checksum,omitempty" db:"checksum"`
	Video        *VideoMetadata  `json:"video,omitempty" db:"video"`
	Storage      StorageMetadata `json:"storage" db:"storage"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UploadedAt   *time.Time      `json:"uploaded_at,omitempty" db:"uploaded_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// VideoMetadata приходит от клиента при выдаче слота и хранится как есть.
type VideoMetadata struct {
	Duration float64 `json:"duration,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Codec    string  `json:"codec,omitempty"`
	Bitrate  int64   `json:"bitrate,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	HasAudio bool    `json:"has_audio"`
}

// StorageMetadata - снимок HEAD-ответа хранилища на момент подтверждения.
type StorageMetadata struct {
	ContentType   string     `json:"content_type,omitempty"`
	ContentLength int64      `json:"content_length,omitempty"`
	LastModified  *time.Time `json:"last_modified,omitempty"`
	ETag          string     `json:"etag,omitempty"`
	StorageClass  string     `json:"storage_class,omitempty"`
}

type FileStatus string

const (
	FileStatusPending   FileStatus = "pending"
	FileStatusCompleted FileStatus = "completed"
	FileStatusFailed    FileStatus = "failed"
)

func (fs FileStatus) String() string {
	return string(fs)
}

func IsValidFileStatus(status string) bool {
	switch FileStatus(status) {
	case FileStatusPending, FileStatusCompleted, FileStatusFailed:
		return true
	default:
		return false
	}
}

type CaptureType string

const (
	CaptureScreenshot CaptureType = "screenshot"
	CaptureVideo      CaptureType = "video"
)

func (ct CaptureType) String() string {
	return string(ct)
}

func IsValidCaptureType(captureType string) bool {
	switch CaptureType(captureType) {
	case CaptureScreenshot, CaptureVideo:
		return true
	default:
		return false
	}
}

type UploadMethod string

const (
	UploadMethodPut  UploadMethod = "put"
	UploadMethodPost UploadMethod = "post"
)

// FileStats считается только по completed-файлам.
type FileStats struct {
	TotalFiles      int64            `json:"total_files"`
	TotalSize       int64            `json:"total_size"`
	AverageFileSize int64            `json:"average_file_size"`
	ByCaptureType   map[string]int64 `json:"by_capture_type"`
	LargestFile     *LargestFile     `json:"largest_file,omitempty"`
}

type LargestFile struct {
	FileKey  string `json:"file_key"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// FileTotals - суммы по completed-файлам кейса, используются для пересборки агрегата.
type FileTotals struct {
	Screenshots  int64
	Videos       int64
	TotalSize    int64
	LastActivity *time.Time
}

package models

import (
	"time"
)

// Data Transfer Objects

type CreateCaseRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Status      string   `json:"status" validate:"omitempty,oneof=active pending closed archived"`
	Priority    string   `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Tags        []string `json:"tags" validate:"max=50,dive,required,max=64"`
	AssignedTo  string   `json:"assigned_to"`
}

type UpdateCaseRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	Status      *string   `json:"status" validate:"omitempty,oneof=active pending closed archived"`
	Priority    *string   `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=50,dive,required,max=64"`
	AssignedTo  *string   `json:"assigned_to"`
}

type IssueUploadSlotRequest struct {
	CaseID       string         `json:"case_id"`
	FileName     string         `json:"file_name"`
	FileType     string         `json:"file_type"`
	FileSize     *int64         `json:"file_size,omitempty"`
	CaptureType  string         `json:"capture_type"`
	UploadMethod string         `json:"upload_method,omitempty"` // put, post
	ExpiresIn    *int64         `json:"expires_in,omitempty"`
	Description  string         `json:"description,omitempty"`
	SourceURL    string         `json:"source_url,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	Video        *VideoMetadata `json:"video,omitempty"`
}

type UploadSlotResponse struct {
	FileID    string            `json:"file_id"`
	FileKey   string            `json:"file_key"`
	UploadURL string            `json:"upload_url"`
	Method    UploadMethod      `json:"method"`
	Fields    map[string]string `json:"fields,omitempty"`
	ExpiresIn int64             `json:"expires_in"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type ConfirmUploadRequest struct {
	FileID         string `json:"file_id" validate:"required_without=FileKey"`
	FileKey        string `json:"file_key" validate:"required_without=FileID"`
	ActualFileSize *int64 `json:"actual_file_size,omitempty" validate:"omitempty,gte=0"`
	Checksum       string `json:"checksum,omitempty" validate:"max=128"`
}

type ConfirmUploadResponse struct {
	File             *FileRecord `json:"file"`
	AlreadyConfirmed bool        `json:"already_confirmed"`
	Warning          string      `json:"warning,omitempty"`
}

type DeleteFileResponse struct {
	FileKey string `json:"file_key"`
	Deleted bool   `json:"deleted"`
	Message string `json:"message,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type BulkDeleteRequest struct {
	FileKeys []string `json:"file_keys" validate:"required,min=1,dive,required"`
}

type BulkDeleteItem struct {
	FileKey string `json:"file_key"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type BulkDeleteResponse struct {
	Results   []BulkDeleteItem `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

type DownloadURLResponse struct {
	FileKey   string    `json:"file_key"`
	URL       string    `json:"url"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

type CaseListResponse struct {
	Cases      []*Case  `json:"cases"`
	Pagination PageInfo `json:"pagination"`
}

type FileListResponse struct {
	Files      []*FileRecord `json:"files"`
	Pagination PageInfo      `json:"pagination"`
}

type CaseFileStatsResponse struct {
	CaseID   string       `json:"case_id"`
	Metadata CaseMetadata `json:"metadata"`
	Files    FileStats    `json:"files"`
	InSync   bool         `json:"in_sync"`
}

type RebuildMetadataResponse struct {
	CaseID   string       `json:"case_id"`
	Previous CaseMetadata `json:"previous"`
	Current  CaseMetadata `json:"current"`
}

package models

import (
	"fmt"
	"time"
)

type Case struct {
	ID          string       `json:"id" db:"id"`
	DisplayID   string       `json:"display_id" db:"display_id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	Status      CaseStatus   `json:"status" db:"status"`     // active, pending, closed, archived
	Priority    CasePriority `json:"priority" db:"priority"` // low, medium, high, critical
	Tags        []string     `json:"tags" db:"tags"`
	AssignedTo  string       `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedBy   string       `json:"created_by" db:"created_by"`
	Metadata    CaseMetadata `json:"metadata"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// CaseMetadata - денормализованный агрегат по файлам кейса.
type CaseMetadata struct {
	TotalScreenshots int64      `json:"total_screenshots" db:"total_screenshots"`
	TotalVideos      int64      `json:"total_videos" db:"total_videos"`
	TotalFileSize    int64      `json:"total_file_size" db:"total_file_size"`
	LastActivity     *time.Time `json:"last_activity,omitempty" db:"last_activity"`
}

func (m CaseMetadata) TotalFiles() int64 {
	return m.TotalScreenshots + m.TotalVideos
}

// MetadataDelta - относительное изменение агрегата. Каждое поле после
// применения ограничивается снизу нулем.
type MetadataDelta struct {
	Screenshots int64
	Videos      int64
	FileSize    int64
	At          time.Time
}

func (d MetadataDelta) ApplyTo(m CaseMetadata) CaseMetadata {
	m.TotalScreenshots = clampZero(m.TotalScreenshots + d.Screenshots)
	m.TotalVideos = clampZero(m.TotalVideos + d.Videos)
	m.TotalFileSize = clampZero(m.TotalFileSize + d.FileSize)
	at := d.At
	m.LastActivity = &at
	return m
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

type CaseStatus string

const (
	CaseStatusActive   CaseStatus = "active"
	CaseStatusPending  CaseStatus = "pending"
	CaseStatusClosed   CaseStatus = "closed"
	CaseStatusArchived CaseStatus = "archived"
)

func (cs CaseStatus) String() string {
	return string(cs)
}

func IsValidCaseStatus(status string) bool {
	switch CaseStatus(status) {
	case CaseStatusActive, CaseStatusPending, CaseStatusClosed, CaseStatusArchived:
		return true
	default:
		return false
	}
}

type CasePriority string

const (
	PriorityLow      CasePriority = "low"
	PriorityMedium   CasePriority = "medium"
	PriorityHigh     CasePriority = "high"
	PriorityCritical CasePriority = "critical"
)

func (cp CasePriority) String() string {
	return string(cp)
}

func IsValidCasePriority(priority string) bool {
	switch CasePriority(priority) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// PriorityRank используется для сортировки по приоритету.
func PriorityRank(p CasePriority) int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

func FormatDisplayID(n int64) string {
	return fmt.Sprintf("CASE-%03d", n)
}

type CaseStats struct {
	TotalCases int64            `json:"total_cases"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByPriority map[string]int64 `json:"by_priority"`
	Files      FileStats        `json:"files"`
}

// CasePatch - частичное обновление кейса, nil означает "не менять".
type CasePatch struct {
	Title       *string
	Description *string
	Status      *CaseStatus
	Priority    *CasePriority
	Tags        *[]string
	AssignedTo  *string
}

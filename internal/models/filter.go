package models

import "time"

// CaseFilter: внутри одного поля условия объединяются через OR, между полями через AND.
type CaseFilter struct {
	Statuses      []CaseStatus
	Priorities    []CasePriority
	Tags          []string
	Search        string
	AssignedTo    string
	CreatedBy     string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SortBy        string
	SortOrder     string
	Page          int
	Limit         int
}

type FileFilter struct {
	CaseID       string
	Statuses     []FileStatus
	CaptureTypes []CaptureType
	Search       string
	UploadedBy   string
	SessionID    string
	MinDuration  *float64
	MaxDuration  *float64
	Width        *int
	Height       *int
	Codec        string
	HasAudio     *bool
	SortBy       string
	SortOrder    string
	Page         int
	Limit        int
}

// Допустимые поля сортировки.
const (
	CaseSortTitle     = "title"
	CaseSortCreatedAt = "created_at"
	CaseSortUpdatedAt = "updated_at"
	CaseSortPriority  = "priority"
	CaseSortStatus    = "status"
	CaseSortFileCount = "file_count"
	CaseSortTotalSize = "total_size"

	FileSortName       = "name"
	FileSortSize       = "size"
	FileSortDate       = "date"
	FileSortDuration   = "duration"
	FileSortResolution = "resolution"

	SortAsc  = "asc"
	SortDesc = "desc"
)

type Requester struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

const (
	RoleUser       = "user"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// IsElevated - может ли пользователь управлять чужими файлами и кейсами.
func (r Requester) IsElevated() bool {
	return r.Role == RoleAdmin || r.Role == RoleSupervisor
}

package types

import (
	"time"
)

// User represents an account that owns queries and settings
type User struct {
	ID             int64
	Email          string
	HashedPassword string
	IsActive       bool
	CreatedAt      time.Time
}

// UserSettings holds per-user defaults for export and transfer.
// All fields are optional; zero values fall back to process-wide defaults.
type UserSettings struct {
	ID             int64
	UserID         int64
	ExportLocation string
	ExportType     ExportType

	// MaxParallelQueries caps this user's concurrent queries.
	// nil means the process-wide default applies.
	MaxParallelQueries *int

	// SSH transfer credentials. Password, key and passphrase are
	// secrets: they must never appear in logs or error messages.
	SSHHostname      string
	SSHPort          int
	SSHUsername      string
	SSHPassword      string
	SSHKey           string
	SSHKeyPassphrase string
}

// Query is the central lifecycle-tracked entity
type Query struct {
	ID     int64
	UserID int64

	// Inputs, immutable after creation
	QueryText  string
	DBUsername string
	DBPassword string
	DBTNS      string // remote DB connection descriptor

	// Optional per-query overrides of user defaults
	ExportLocation string
	ExportType     ExportType
	ExportFilename string
	SSHHostname    string

	// State and outcome
	Status         QueryStatus
	ErrorMessage   string
	ResultMetadata ResultMetadata

	CreatedAt   time.Time
	StartedAt   *time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// QueryStatus represents the lifecycle state of a query
type QueryStatus string

const (
	StatusPending      QueryStatus = "pending"
	StatusQueued       QueryStatus = "queued"
	StatusRunning      QueryStatus = "running"
	StatusTransferring QueryStatus = "transferring"
	StatusCompleted    QueryStatus = "completed"
	StatusFailed       QueryStatus = "failed"
)

// Valid reports whether s is a recognised status value
func (s QueryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusRunning, StatusTransferring, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is a terminal status
func (s QueryStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the edge s -> to is on the lifecycle DAG.
// Failed is reachable from every non-terminal state.
func (s QueryStatus) CanTransition(to QueryStatus) bool {
	if !s.Valid() || !to.Valid() {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	switch s {
	case StatusPending:
		return to == StatusQueued || to == StatusRunning
	case StatusQueued:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusTransferring
	case StatusTransferring:
		return to == StatusCompleted
	}
	return false
}

// ExportType selects the file format a result set is materialised into
type ExportType string

const (
	ExportCSV     ExportType = "csv"
	ExportExcel   ExportType = "excel"
	ExportJSON    ExportType = "json"
	ExportFeather ExportType = "feather"
)

// Valid reports whether t is a recognised export type
func (t ExportType) Valid() bool {
	switch t {
	case ExportCSV, ExportExcel, ExportJSON, ExportFeather:
		return true
	}
	return false
}

// Extension returns the file extension for t, without the leading dot
func (t ExportType) Extension() string {
	switch t {
	case ExportExcel:
		return "xlsx"
	case ExportJSON:
		return "json"
	case ExportFeather:
		return "feather"
	default:
		return "csv"
	}
}

// ResultMetadata describes the materialised artefact of a completed query.
// Numeric fields are pointers so a partial update can carry a legitimate
// zero (a query returning no rows still records rows = 0).
type ResultMetadata struct {
	Rows          *int64   `json:"rows,omitempty"`
	Columns       *int     `json:"columns,omitempty"`
	ColumnNames   []string `json:"column_names,omitempty"`
	FileSize      *int64   `json:"file_size,omitempty"`
	TmpFilePath   string   `json:"tmp_file_path,omitempty"`
	FinalFilePath string   `json:"final_file_path,omitempty"`
}

// Merge copies every set field of delta into m, leaving the rest intact.
// A field already set in m never becomes unset.
func (m *ResultMetadata) Merge(delta ResultMetadata) {
	if delta.Rows != nil {
		m.Rows = delta.Rows
	}
	if delta.Columns != nil {
		m.Columns = delta.Columns
	}
	if delta.ColumnNames != nil {
		m.ColumnNames = delta.ColumnNames
	}
	if delta.FileSize != nil {
		m.FileSize = delta.FileSize
	}
	if delta.TmpFilePath != "" {
		m.TmpFilePath = delta.TmpFilePath
	}
	if delta.FinalFilePath != "" {
		m.FinalFilePath = delta.FinalFilePath
	}
}

// IsZero reports whether no field of m is set
func (m ResultMetadata) IsZero() bool {
	return m.Rows == nil && m.Columns == nil && m.ColumnNames == nil &&
		m.FileSize == nil && m.TmpFilePath == "" && m.FinalFilePath == ""
}

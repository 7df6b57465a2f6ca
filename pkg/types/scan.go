package types

import (
	"time"
)

// ScanRecord is the last known state of one in-flight scan
type ScanRecord struct {
	TaskID    string            `json:"task_id"`
	Target    string            `json:"target"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	StartedAt time.Time         `json:"started_at"`

	// Set when a scan_error was received for the task. The record stays
	// in the registry until completion or expiry.
	ErroredAt time.Time `json:"errored_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Errored reports whether a scan_error was seen for this record
func (r ScanRecord) Errored() bool {
	return !r.ErroredAt.IsZero()
}

// ActivityKind classifies an activity log entry
type ActivityKind string

const (
	ActivityStarted   ActivityKind = "started"
	ActivityOutput    ActivityKind = "output"
	ActivityCompleted ActivityKind = "completed"
	ActivityFailed    ActivityKind = "failed"
	ActivityError     ActivityKind = "error"
	ActivityStopped   ActivityKind = "stopped"
)

// ActivityEntry is an immutable human readable log line
type ActivityEntry struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Kind      ActivityKind `json:"kind"`
	TaskID    string       `json:"task_id,omitempty"`
	Message   string       `json:"message"`
}

// StatusSnapshot is the latest aggregate status reported by the server
type StatusSnapshot struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	UptimeSeconds float64   `json:"uptime"`
	CPUPct        float64   `json:"cpu"`
	MemPct        float64   `json:"memory"`
	DiskPct       float64   `json:"disk"`
	ReceivedAt    time.Time `json:"received_at"`

	// Optional absolute usage, zero when the server does not report it
	MemUsedBytes   uint64 `json:"memory_used_bytes,omitempty"`
	MemTotalBytes  uint64 `json:"memory_total_bytes,omitempty"`
	DiskUsedBytes  uint64 `json:"disk_used_bytes,omitempty"`
	DiskTotalBytes uint64 `json:"disk_total_bytes,omitempty"`
}

// StartScanRequest is the body of POST /start_scan
type StartScanRequest struct {
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

// Validate checks if the request has all required fields populated
func (r *StartScanRequest) Validate() error {
	if r.Target == "" {
		return &ValidationError{Field: "target", Message: "target is required"}
	}
	return nil
}

// StartScanResponse is returned by POST /start_scan
type StartScanResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

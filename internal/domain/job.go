// Package domain contains the core domain types for the CSV translation service.
package domain

import "time"

// Status is the lifecycle state of a Job Record.
type Status string

// Job status values as stored in the metadata table.
const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// allStatuses lists every status in lifecycle order.
var allStatuses = []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether s -> next is an edge of the job state machine:
// QUEUED -> PROCESSING -> COMPLETED | FAILED.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// TransitionSources returns the statuses a record may hold when a write of
// status to is accepted. PROCESSING also accepts itself so a redelivered job
// can re-assert it.
func TransitionSources(to Status) []Status {
	var sources []Status
	for _, s := range allStatuses {
		if s.CanTransitionTo(to) || (s == to && to == StatusProcessing) {
			sources = append(sources, s)
		}
	}
	return sources
}

// Identity is the requester a job is recorded against.
type Identity struct {
	UserID string
	Email  string
}

// System identity used when an asynchronously uploaded object carries no
// resolvable owner.
const (
	SystemUserID = "SYSTEM_UPLOAD"
	SystemEmail  = "system@s3_upload.com"
)

// SystemIdentity returns the fallback identity for anonymous storage uploads.
func SystemIdentity() Identity {
	return Identity{UserID: SystemUserID, Email: SystemEmail}
}

// IsZero reports whether either half of the identity is missing.
func (i Identity) IsZero() bool {
	return i.UserID == "" || i.Email == ""
}

// JobKey addresses one Job Record.
type JobKey struct {
	FileID    string `dynamodbav:"file_id"`
	Timestamp string `dynamodbav:"timestamp"`
}

// JobRecord is a single item in the metadata table.
type JobRecord struct {
	FileID         string  `dynamodbav:"file_id" json:"file_id"`
	Timestamp      string  `dynamodbav:"timestamp" json:"timestamp"`
	UserID         string  `dynamodbav:"user_id" json:"user_id"`
	Email          string  `dynamodbav:"email" json:"email"`
	Status         Status  `dynamodbav:"status" json:"status"`
	OriginalFile   string  `dynamodbav:"original_file" json:"original_file"`
	TranslatedFile *string `dynamodbav:"translated_file" json:"translated_file"`
	Bucket         string  `dynamodbav:"bucket" json:"bucket"`
	SourceLang     string  `dynamodbav:"source_lang,omitempty" json:"source_lang,omitempty"`
	TargetLang     string  `dynamodbav:"target_lang,omitempty" json:"target_lang,omitempty"`
	ErrorDetail    string  `dynamodbav:"error_detail,omitempty" json:"error_detail,omitempty"`
	UpdatedAt      string  `dynamodbav:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Key returns the primary key of the record.
func (r JobRecord) Key() JobKey {
	return JobKey{FileID: r.FileID, Timestamp: r.Timestamp}
}

// NewJobRecord builds a QUEUED record, the only initial state.
func NewJobRecord(fileID string, at time.Time, who Identity, originalFile, bucket string, langs Languages) JobRecord {
	return JobRecord{
		FileID:       fileID,
		Timestamp:    FormatTimestamp(at),
		UserID:       who.UserID,
		Email:        who.Email,
		Status:       StatusQueued,
		OriginalFile: originalFile,
		Bucket:       bucket,
		SourceLang:   langs.Source,
		TargetLang:   langs.Target,
	}
}

// FormatTimestamp renders the sort-key timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// TransitionFields are the attributes written together with a status change.
type TransitionFields struct {
	TranslatedFile string
	ErrorDetail    string
}

package domain

import "errors"

// Request classification and validation failures.
var (
	ErrUnsupportedEventKind = errors.New("unsupported event type")
	ErrUnauthenticated      = errors.New("API key is required")
	ErrInvalidCredential    = errors.New("invalid API key")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrEmptyBody            = errors.New("request body is empty")
	ErrInvalidContent       = errors.New("invalid content")
	ErrMalformedCSV         = errors.New("invalid CSV format")
)

// Collaborator failures.
var (
	ErrStorage     = errors.New("storage failure")
	ErrQueue       = errors.New("queue failure")
	ErrTranslation = errors.New("translation failure")
	ErrStructural  = errors.New("translation job failed")
)

// Metadata store outcomes.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrObjectNotFound    = errors.New("object not found")
)

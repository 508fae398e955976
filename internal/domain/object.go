package domain

import "time"

// ObjectInfo summarizes a stored object as returned by head and list calls.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	StorageClass string
	ETag         string
	Metadata     map[string]string
}

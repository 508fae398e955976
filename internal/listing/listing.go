// Package listing serves the read-only CSV listing endpoints.
package listing

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pricofy/csv-translation/internal/domain"
)

// FileEntry describes one CSV object.
type FileEntry struct {
	FileName     string `json:"fileName"`
	LastModified string `json:"lastModified"`
	Size         int64  `json:"size"`
	StorageClass string `json:"storageClass"`
	ETag         string `json:"etag"`
}

// Response is the body of both listing endpoints.
type Response struct {
	CSVFiles []FileEntry `json:"csvFiles"`
	Count    int         `json:"count"`
	Bucket   string      `json:"bucket"`
}

func newResponse(bucket string, files []FileEntry) Response {
	if files == nil {
		files = []FileEntry{}
	}
	return Response{CSVFiles: files, Count: len(files), Bucket: bucket}
}

func entry(info domain.ObjectInfo) FileEntry {
	storageClass := info.StorageClass
	if storageClass == "" {
		storageClass = "STANDARD"
	}
	return FileEntry{
		FileName:     info.Key,
		LastModified: info.LastModified.UTC().Format(time.RFC3339),
		Size:         info.Size,
		StorageClass: storageClass,
		ETag:         strings.Trim(info.ETag, `"`),
	}
}

func isCSV(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".csv")
}

// cutoff returns the oldest modification time accepted for the hours query
// parameter, or the zero time when no filter applies.
func cutoff(ctx context.Context, logger *slog.Logger, params map[string]string, now time.Time) time.Time {
	raw := strings.TrimSpace(params["hours"])
	if raw == "" {
		return time.Time{}
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		logger.DebugContext(ctx, "ignoring hours parameter", "hours", raw)
		return time.Time{}
	}
	return now.Add(-time.Duration(hours) * time.Hour)
}

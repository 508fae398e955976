package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pricofy/csv-translation/internal/domain"
)

// Kind is the shape of an inbound event.
type Kind int

// Event kinds recognised by Classify.
const (
	KindSyncRequest Kind = iota + 1
	KindRecordBatch
)

// RecordKind is the origin of one record in a batch.
type RecordKind int

// Record kinds. Records of RecordUnknown are skipped.
const (
	RecordUnknown RecordKind = iota
	RecordStorage
	RecordQueue
)

// Event is a classified inbound event. Request is set for KindSyncRequest,
// Records for KindRecordBatch.
type Event struct {
	Kind    Kind
	Request *events.APIGatewayProxyRequest
	Records []Record
}

// Record is one entry of a batch. Storage or Queue is set according to Kind.
type Record struct {
	Kind    RecordKind
	Storage *events.S3EventRecord
	Queue   *events.SQSMessage
}

// Classify inspects the top-level markers of raw: requestContext for API
// requests and Records for storage or queue batches. Anything else yields
// domain.ErrUnsupportedEventKind.
func Classify(raw json.RawMessage) (Event, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Event{}, fmt.Errorf("%w: %w", domain.ErrUnsupportedEventKind, err)
	}

	if _, ok := top["requestContext"]; ok {
		var req events.APIGatewayProxyRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return Event{}, fmt.Errorf("%w: request: %w", domain.ErrUnsupportedEventKind, err)
		}
		return Event{Kind: KindSyncRequest, Request: &req}, nil
	}

	rawRecords, ok := top["Records"]
	if !ok {
		return Event{}, domain.ErrUnsupportedEventKind
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(rawRecords, &entries); err != nil {
		return Event{}, fmt.Errorf("%w: records: %w", domain.ErrUnsupportedEventKind, err)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		records = append(records, classifyRecord(entry))
	}
	return Event{Kind: KindRecordBatch, Records: records}, nil
}

func classifyRecord(raw json.RawMessage) Record {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{Kind: RecordUnknown}
	}

	if _, ok := fields["s3"]; ok {
		var rec events.S3EventRecord
		if err := json.Unmarshal(raw, &rec); err == nil {
			return Record{Kind: RecordStorage, Storage: &rec}
		}
		return Record{Kind: RecordUnknown}
	}
	if _, ok := fields["body"]; ok {
		var msg events.SQSMessage
		if err := json.Unmarshal(raw, &msg); err == nil {
			return Record{Kind: RecordQueue, Queue: &msg}
		}
	}
	return Record{Kind: RecordUnknown}
}

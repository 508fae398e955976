package domain

import (
	"fmt"
	"strings"
)

// DefaultSourceLang lets the translation service detect the source language.
const DefaultSourceLang = "auto"

// Languages is the source/target pair of one translation.
type Languages struct {
	Source string `json:"source_lang,omitempty"`
	Target string `json:"target_lang,omitempty"`
}

// WithDefaults fills empty fields from def.
func (l Languages) WithDefaults(def Languages) Languages {
	if strings.TrimSpace(l.Source) == "" {
		l.Source = def.Source
	}
	if strings.TrimSpace(l.Target) == "" {
		l.Target = def.Target
	}
	return l
}

// Validate checks the pair can be sent to the translation service.
func (l Languages) Validate() error {
	if l.Source == "" {
		return fmt.Errorf("source language is required")
	}
	if l.Target == "" {
		return fmt.Errorf("target language is required")
	}
	if l.Target == DefaultSourceLang {
		return fmt.Errorf("target language cannot be %q", DefaultSourceLang)
	}
	if l.Source == l.Target {
		return fmt.Errorf("source and target language must be different")
	}
	return nil
}

// JobMessage is the queue payload that asks for one file to be translated.
type JobMessage struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	FileID    string `json:"file_id"`
	Timestamp string `json:"timestamp,omitempty"`
	Languages
}

// Validate checks the fields the pipeline needs.
func (m JobMessage) Validate() error {
	switch {
	case m.Bucket == "":
		return fmt.Errorf("%w: message has no bucket", ErrInvalidContent)
	case m.Key == "":
		return fmt.Errorf("%w: message has no key", ErrInvalidContent)
	case m.FileID == "":
		return fmt.Errorf("%w: message has no file_id", ErrInvalidContent)
	}
	return nil
}

// ObjectRef locates an object in the object store.
type ObjectRef struct {
	Bucket string
	Key    string
}

// String renders the reference as an s3:// URI.
func (r ObjectRef) String() string {
	return "s3://" + r.Bucket + "/" + r.Key
}

// ParseObjectURI splits an s3://bucket/key URI. Bare keys are returned with
// defaultBucket.
func ParseObjectURI(uri, defaultBucket string) ObjectRef {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return ObjectRef{Bucket: defaultBucket, Key: uri}
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found {
		return ObjectRef{Bucket: defaultBucket, Key: rest}
	}
	return ObjectRef{Bucket: bucket, Key: key}
}

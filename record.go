package mangascraper

import (
	"context"
	"time"
)

// DownloadRecord is a history entry for one finished download.
type DownloadRecord struct {
	ID             string    `json:"id"`
	SourceID       string    `json:"sourceId"`
	ChapterID      string    `json:"chapterId"`
	ChapterName    string    `json:"chapterName"`
	CollectionName string    `json:"collectionName"`
	ChapterURL     string    `json:"chapterUrl"`
	Outcome        Outcome   `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	OutputPath     string    `json:"outputPath,omitempty"`
	ContentHash    string    `json:"contentHash,omitempty"`
	Pages          int       `json:"pages"`
	Skipped        int       `json:"skipped"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Validate returns an error if the record contains invalid fields.
func (r *DownloadRecord) Validate() error {
	if r.SourceID == "" {
		return Errorf(EINVALID, "record source ID required")
	}
	if r.ChapterID == "" {
		return Errorf(EINVALID, "record chapter ID required")
	}
	switch r.Outcome {
	case OutcomeCompleted, OutcomeCancelled, OutcomeFailed:
	default:
		return Errorf(EINVALID, "record outcome %q invalid", r.Outcome)
	}
	return nil
}

// RecordService represents a service for managing download history.
type RecordService interface {
	// GetRecord retrieves a record by ID.
	// Returns ENOTFOUND if record does not exist.
	GetRecord(ctx context.Context, id string) (*DownloadRecord, error)

	// StoreRecord creates the record, or replaces it when its ID exists.
	// A record without ID is assigned one.
	StoreRecord(ctx context.Context, record *DownloadRecord) error

	// RemoveRecord permanently removes a record.
	// Returns ENOTFOUND if record does not exist.
	RemoveRecord(ctx context.Context, id string) error

	// ListRecords retrieves records matching the filter, newest first.
	ListRecords(ctx context.Context, filter RecordFilter) ([]*DownloadRecord, error)
}

// RecordFilter represents a filter for ListRecords.
type RecordFilter struct {
	SourceID  *string  `json:"sourceId"`
	ChapterID *string  `json:"chapterId"`
	Outcome   *Outcome `json:"outcome"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

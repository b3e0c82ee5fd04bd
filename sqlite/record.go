package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/blacker-cz/mangascraper"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ mangascraper.RecordService = (*RecordService)(nil)

// RecordService implements mangascraper.RecordService using SQLite.
type RecordService struct {
	db *DB
}

// NewRecordService creates a new RecordService.
func NewRecordService(db *DB) *RecordService {
	return &RecordService{db: db}
}

const recordColumns = `id, source_id, chapter_id, chapter_name, collection_name, chapter_url,
	outcome, error, output_path, content_hash, pages, skipped, created_at`

// GetRecord retrieves a record by ID.
func (s *RecordService) GetRecord(ctx context.Context, id string) (*mangascraper.DownloadRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mangascraper.Errorf(mangascraper.ENOTFOUND, "record not found")
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// StoreRecord inserts the record or replaces the record with the same ID.
// A missing ID and creation time are filled in.
func (s *RecordService) StoreRecord(ctx context.Context, record *mangascraper.DownloadRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			chapter_id = excluded.chapter_id,
			chapter_name = excluded.chapter_name,
			collection_name = excluded.collection_name,
			chapter_url = excluded.chapter_url,
			outcome = excluded.outcome,
			error = excluded.error,
			output_path = excluded.output_path,
			content_hash = excluded.content_hash,
			pages = excluded.pages,
			skipped = excluded.skipped,
			created_at = excluded.created_at
	`, record.ID, record.SourceID, record.ChapterID, record.ChapterName, record.CollectionName,
		record.ChapterURL, string(record.Outcome), record.Error, record.OutputPath, record.ContentHash,
		record.Pages, record.Skipped, record.CreatedAt.Format(time.RFC3339))

	return err
}

// RemoveRecord permanently removes a record.
func (s *RecordService) RemoveRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return mangascraper.Errorf(mangascraper.ENOTFOUND, "record not found")
	}

	return nil
}

// ListRecords retrieves records matching the filter, newest first.
func (s *RecordService) ListRecords(ctx context.Context, filter mangascraper.RecordFilter) ([]*mangascraper.DownloadRecord, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + recordColumns + " FROM records WHERE 1=1")

	if filter.SourceID != nil {
		query.WriteString(" AND source_id = ?")
		args = append(args, *filter.SourceID)
	}
	if filter.ChapterID != nil {
		query.WriteString(" AND chapter_id = ?")
		args = append(args, *filter.ChapterID)
	}
	if filter.Outcome != nil {
		query.WriteString(" AND outcome = ?")
		args = append(args, string(*filter.Outcome))
	}

	query.WriteString(" ORDER BY created_at DESC, rowid DESC")

	// SQLite only accepts OFFSET after a LIMIT; -1 means no limit.
	switch {
	case filter.Limit > 0:
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	case filter.Offset > 0:
		query.WriteString(" LIMIT -1")
	}
	if filter.Offset > 0 {
		query.WriteString(" OFFSET ?")
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*mangascraper.DownloadRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*mangascraper.DownloadRecord, error) {
	var record mangascraper.DownloadRecord
	var outcome, createdAt string

	if err := row.Scan(&record.ID, &record.SourceID, &record.ChapterID, &record.ChapterName,
		&record.CollectionName, &record.ChapterURL, &outcome, &record.Error, &record.OutputPath,
		&record.ContentHash, &record.Pages, &record.Skipped, &createdAt); err != nil {
		return nil, err
	}

	record.Outcome = mangascraper.Outcome(outcome)
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, mangascraper.WrapError(mangascraper.EINTERNAL, err, "record %s has a malformed creation time", record.ID)
	}
	record.CreatedAt = t

	return &record, nil
}

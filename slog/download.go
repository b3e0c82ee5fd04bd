package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/blacker-cz/mangascraper"
)

var _ mangascraper.Packager = (*LoggingPackager)(nil)

// LoggingPackager wraps a Packager with logging.
type LoggingPackager struct {
	next   mangascraper.Packager
	logger *slog.Logger
}

// NewLoggingPackager creates a new LoggingPackager.
func NewLoggingPackager(next mangascraper.Packager, logger *slog.Logger) *LoggingPackager {
	return &LoggingPackager{next: next, logger: logger}
}

func (p *LoggingPackager) Name() string {
	return p.next.Name()
}

func (p *LoggingPackager) Save(ctx context.Context, chapter *mangascraper.Chapter, sourceDir, destDir string) (path string, err error) {
	defer func(begin time.Time) {
		p.logger.Info("package",
			"format", p.next.Name(),
			"chapter", chapter.String(),
			"path", path,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return p.next.Save(ctx, chapter, sourceDir, destDir)
}

var _ mangascraper.RecordService = (*LoggingRecordService)(nil)

// LoggingRecordService wraps a RecordService with logging.
type LoggingRecordService struct {
	next   mangascraper.RecordService
	logger *slog.Logger
}

// NewLoggingRecordService creates a new LoggingRecordService.
func NewLoggingRecordService(next mangascraper.RecordService, logger *slog.Logger) *LoggingRecordService {
	return &LoggingRecordService{next: next, logger: logger}
}

func (s *LoggingRecordService) GetRecord(ctx context.Context, id string) (record *mangascraper.DownloadRecord, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("get record",
			"id", id,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.GetRecord(ctx, id)
}

func (s *LoggingRecordService) StoreRecord(ctx context.Context, record *mangascraper.DownloadRecord) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("store record",
			"id", record.ID,
			"chapter", record.ChapterID,
			"outcome", record.Outcome,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.StoreRecord(ctx, record)
}

func (s *LoggingRecordService) RemoveRecord(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("remove record",
			"id", id,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.RemoveRecord(ctx, id)
}

func (s *LoggingRecordService) ListRecords(ctx context.Context, filter mangascraper.RecordFilter) (records []*mangascraper.DownloadRecord, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("list records",
			"count", len(records),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ListRecords(ctx, filter)
}

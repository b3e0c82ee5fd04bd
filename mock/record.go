package mock

import (
	"context"

	"github.com/blacker-cz/mangascraper"
)

var _ mangascraper.RecordService = (*RecordService)(nil)

// RecordService is a mock implementation of mangascraper.RecordService.
type RecordService struct {
	GetRecordFn    func(ctx context.Context, id string) (*mangascraper.DownloadRecord, error)
	StoreRecordFn  func(ctx context.Context, record *mangascraper.DownloadRecord) error
	RemoveRecordFn func(ctx context.Context, id string) error
	ListRecordsFn  func(ctx context.Context, filter mangascraper.RecordFilter) ([]*mangascraper.DownloadRecord, error)
}

func (s *RecordService) GetRecord(ctx context.Context, id string) (*mangascraper.DownloadRecord, error) {
	return s.GetRecordFn(ctx, id)
}

func (s *RecordService) StoreRecord(ctx context.Context, record *mangascraper.DownloadRecord) error {
	return s.StoreRecordFn(ctx, record)
}

func (s *RecordService) RemoveRecord(ctx context.Context, id string) error {
	return s.RemoveRecordFn(ctx, id)
}

func (s *RecordService) ListRecords(ctx context.Context, filter mangascraper.RecordFilter) ([]*mangascraper.DownloadRecord, error) {
	return s.ListRecordsFn(ctx, filter)
}

package mock

import (
	"context"

	"github.com/blacker-cz/mangascraper"
)

var _ mangascraper.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of mangascraper.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}

// Package bloom deduplicates locators seen while walking paginated listings.
package bloom

import (
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Filter is a Bloom filter over locators. Locators differing only by
// fragment are the same entry. Filter is safe for concurrent use.
type Filter struct {
	mu sync.Mutex
	f  *bloom.BloomFilter
}

// NewFilter creates a new Bloom filter sized for n expected locators
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	if n == 0 {
		n = 1
	}
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add records a locator.
func (f *Filter) Add(locator string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.f.AddString(key(locator))
}

// Test returns true if the locator might have been recorded.
// False positives are possible; false negatives are not.
func (f *Filter) Test(locator string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.f.TestString(key(locator))
}

// Visit records the locator and reports whether it was new.
func (f *Filter) Visit(locator string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.f.TestAndAddString(key(locator))
}

// EstimatedCount returns the approximate number of recorded locators.
func (f *Filter) EstimatedCount() uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint(f.f.ApproximatedSize())
}

func key(locator string) string {
	if i := strings.IndexByte(locator, '#'); i != -1 {
		return locator[:i]
	}
	return locator
}

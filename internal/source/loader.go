// Package source holds one loader per tool backend. Each loader owns a
// time-bounded cache of its last successful fetch and is solely
// responsible for translating the backend's wire shape into domain.Tool
// records. Loader failures degrade to empty contributions; they never
// poison the other sources.
package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// Loader is the per-source contract consumed by the aggregator.
type Loader interface {
	Source() domain.SourceType

	// Load returns the source's current tools, serving the cache when it
	// is still fresh. A non-nil error means the backend could not be
	// reached at all; partial record failures are skipped, not returned.
	Load(ctx context.Context) ([]domain.Tool, error)

	// Invalidate drops the cache so the next Load refetches.
	Invalidate()
}

// Error records a single source's load failure.
type Error struct {
	Source domain.SourceType
	Err    error
}

func (e Error) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// base carries what every loader shares: the cache, the category table
// used to fill missing categories, and a named logger.
type base struct {
	source domain.SourceType
	cache  *cache
	table  *category.Table
	logger *zap.Logger
	now    func() time.Time
}

func newBase(source domain.SourceType, ttl time.Duration, table *category.Table, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		source: source,
		cache:  newCache(ttl),
		table:  table,
		logger: logger.Named(string(source) + "_loader"),
		now:    time.Now,
	}
}

func (b *base) Source() domain.SourceType {
	return b.source
}

func (b *base) Invalidate() {
	b.cache.invalidate()
}

// admit finalizes a translated record: stable id when the backend gave
// none, inferred category when missing. Returns false when the record is
// unusable even after defaulting.
func (b *base) admit(tool *domain.Tool, fetchedAt time.Time) bool {
	if tool.Name == "" {
		return false
	}
	tool.SourceType = b.source
	if tool.ID == "" {
		tool.ID = domain.StableToolID(b.source, tool.Name, fetchedAt)
	}
	if tool.FunctionalCategory == "" && b.table != nil {
		tool.FunctionalCategory = b.table.Infer(*tool)
	}
	return true
}

// Package registry holds the in-memory index of all known tools and is
// the only code allowed to mutate it. External collaborators reach tools
// exclusively through its methods; change events go out on the bus and
// listeners re-query rather than mutating from callbacks.
package registry

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/aggregate"
	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/domain"
	"github.com/jin-never/logicworld-sub001/internal/event"
	"github.com/jin-never/logicworld-sub001/internal/probe"
	"github.com/jin-never/logicworld-sub001/internal/telemetry"
)

type Options struct {
	Aggregator *aggregate.Aggregator
	Bus        *event.Bus
	Probes     probe.Set
	Table      *category.Table
	Metrics    *telemetry.Metrics
	Logger     *zap.Logger
}

type Registry struct {
	agg     *aggregate.Aggregator
	bus     *event.Bus
	probes  probe.Set
	table   *category.Table
	metrics *telemetry.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	initialized bool
	tools       map[string]domain.Tool
	// locals are tools no backend re-observes: direct AddTool records and
	// converted copies from approvals. They survive refreshes and leave
	// the index only through explicit DeleteTool.
	locals       map[string]struct{}
	requests     map[string]domain.ApprovalRequest
	openRequests map[string]string // tool id -> unresolved request id
	appliedGen   map[domain.SourceType]uint64
}

func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus(logger)
	}
	return &Registry{
		agg:          opts.Aggregator,
		bus:          bus,
		probes:       opts.Probes,
		table:        opts.Table,
		metrics:      opts.Metrics,
		logger:       logger.Named("registry"),
		now:          time.Now,
		tools:        make(map[string]domain.Tool),
		locals:       make(map[string]struct{}),
		requests:     make(map[string]domain.ApprovalRequest),
		openRequests: make(map[string]string),
		appliedGen:   make(map[domain.SourceType]uint64),
	}
}

// Bus exposes the event bus for subscribers.
func (r *Registry) Bus() *event.Bus {
	return r.bus
}

// Initialize performs the first full load. Safe to call repeatedly; only
// the first call aggregates.
func (r *Registry) Initialize(ctx context.Context) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return nil
	}
	r.initialized = true
	r.mu.Unlock()

	result := r.agg.LoadAll(ctx)
	count := r.applyFull(result)
	r.bus.Publish(event.Event{
		Name: event.Initialized,
		Initialized: &event.InitializedPayload{
			ToolCount: count,
			Errors:    result.Errors,
			Warnings:  result.Warnings,
		},
	})
	return nil
}

// Refresh invalidates every source cache and re-runs the aggregation.
func (r *Registry) Refresh(ctx context.Context) error {
	r.agg.InvalidateAll()
	result := r.agg.LoadAll(ctx)
	count := r.applyFull(result)
	r.metrics.ObserveRefresh("full")
	r.bus.Publish(event.Event{
		Name: event.Initialized,
		Initialized: &event.InitializedPayload{
			ToolCount: count,
			Errors:    result.Errors,
			Warnings:  result.Warnings,
		},
	})
	return nil
}

// RefreshSource reloads exactly one source, leaving every other source's
// tools untouched.
func (r *Registry) RefreshSource(ctx context.Context, src domain.SourceType) error {
	result, err := r.agg.RefreshSource(ctx, src)
	if err != nil {
		return err
	}
	count, applied := r.applySource(src, result)
	if !applied {
		r.logger.Info("discarding stale source refresh",
			zap.String("source", string(src)), zap.Uint64("generation", result.Generation))
		return nil
	}
	r.metrics.ObserveRefresh(string(src))
	r.bus.Publish(event.Event{
		Name: event.SourceRefreshed,
		SourceRefreshed: &event.SourceRefreshedPayload{
			Source:    src,
			ToolCount: count,
			Errors:    result.Errors,
		},
	})
	return nil
}

// applyFull replaces the loader-backed portion of the index. A source
// whose last applied generation is newer than this result keeps its
// current tools; everything else is replaced. Locals always survive.
func (r *Registry) applyFull(result aggregate.Result) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := make(map[domain.SourceType]bool)
	for src, gen := range r.appliedGen {
		if result.Generation < gen {
			stale[src] = true
		}
	}

	next := make(map[string]domain.Tool, len(result.Tools)+len(r.locals))

	// Carry locals and the tools of any source that already applied a
	// newer generation.
	for id, tool := range r.tools {
		if _, local := r.locals[id]; local || stale[tool.SourceType] {
			next[id] = tool
		}
	}

	for _, tool := range result.Tools {
		if stale[tool.SourceType] {
			continue
		}
		if _, taken := next[tool.ID]; taken {
			r.logger.Warn("loaded tool shadowed by registry-owned record", zap.String("id", tool.ID))
			continue
		}
		next[tool.ID] = r.reconcile(tool, r.tools[tool.ID])
	}

	for _, src := range domain.SourceOrder {
		if !stale[src] {
			r.appliedGen[src] = result.Generation
		}
	}
	r.tools = next
	return len(next)
}

// applySource swaps out one source's loader-backed tools. Returns the
// new count for that source and whether the result was applied at all.
func (r *Registry) applySource(src domain.SourceType, result aggregate.Result) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if result.Generation < r.appliedGen[src] {
		return 0, false
	}

	previous := make(map[string]domain.Tool)
	for id, tool := range r.tools {
		if tool.SourceType != src {
			continue
		}
		if _, local := r.locals[id]; local {
			continue
		}
		previous[id] = tool
		delete(r.tools, id)
	}

	count := 0
	for _, tool := range result.Tools {
		if _, taken := r.tools[tool.ID]; taken {
			r.logger.Warn("loaded tool shadowed by existing record", zap.String("id", tool.ID))
			continue
		}
		r.tools[tool.ID] = r.reconcile(tool, previous[tool.ID])
		count++
	}
	r.appliedGen[src] = result.Generation
	return count, true
}

// reconcile stamps registry-owned timestamps on a loaded tool. A tool
// re-observed with unchanged content keeps both timestamps, so refreshing
// against an unchanged backend yields an identical view; changed content
// keeps CreatedAt and bumps UpdatedAt.
func (r *Registry) reconcile(tool, prev domain.Tool) domain.Tool {
	now := r.now()
	if prev.ID == "" {
		tool.CreatedAt = now
		tool.UpdatedAt = now
		return tool
	}
	tool.CreatedAt = prev.CreatedAt
	if sameContent(tool, prev) {
		tool.UpdatedAt = prev.UpdatedAt
	} else {
		tool.UpdatedAt = now
	}
	return tool
}

// sameContent compares two tools ignoring the registry-owned timestamps.
func sameContent(a, b domain.Tool) bool {
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	a.UpdatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	return reflect.DeepEqual(a, b)
}

// Shutdown closes the event bus. The registry itself holds no other
// resources.
func (r *Registry) Shutdown() {
	r.bus.Close()
}

func (r *Registry) knownCategory(id string) bool {
	if r.table == nil {
		return true
	}
	return r.table.Known(id)
}

func newToolID(src domain.SourceType) string {
	return string(src) + "-" + uuid.NewString()
}

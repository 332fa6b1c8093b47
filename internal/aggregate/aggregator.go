// Package aggregate fans out to every source loader concurrently and
// merges their results into one deterministic list.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/domain"
	"github.com/jin-never/logicworld-sub001/internal/source"
	"github.com/jin-never/logicworld-sub001/internal/telemetry"
)

// Result is one settled aggregation pass. Generation orders competing
// passes: consumers must discard a Result whose generation is older than
// the last one they applied for the same scope.
type Result struct {
	Tools      []domain.Tool
	Errors     []source.Error
	Warnings   []string
	Generation uint64
}

// Aggregator invokes every loader concurrently and concatenates results
// in the fixed source order (system, ai, mcp, api, user) so id collisions
// resolve deterministically: the first occurrence wins and later ones are
// reported as data-quality warnings.
type Aggregator struct {
	loaders    []source.Loader
	logger     *zap.Logger
	metrics    *telemetry.Metrics
	generation atomic.Uint64
}

// New orders the given loaders by domain.SourceOrder. Missing sources are
// allowed (that source simply contributes nothing); duplicate sources are
// a configuration error.
func New(loaders []source.Loader, metrics *telemetry.Metrics, logger *zap.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bySource := make(map[domain.SourceType]source.Loader, len(loaders))
	for _, loader := range loaders {
		if loader == nil {
			continue
		}
		src := loader.Source()
		if !domain.KnownSource(src) {
			return nil, fmt.Errorf("loader for unknown source %q", src)
		}
		if _, dup := bySource[src]; dup {
			return nil, fmt.Errorf("duplicate loader for source %q", src)
		}
		bySource[src] = loader
	}

	ordered := make([]source.Loader, 0, len(bySource))
	for _, src := range domain.SourceOrder {
		if loader, ok := bySource[src]; ok {
			ordered = append(ordered, loader)
		}
	}
	return &Aggregator{
		loaders: ordered,
		logger:  logger.Named("aggregator"),
		metrics: metrics,
	}, nil
}

// LoadAll runs every loader concurrently and waits for all of them to
// settle; one loader's failure never cancels the others. Failed sources
// contribute nothing and are reported in Result.Errors.
func (a *Aggregator) LoadAll(ctx context.Context) Result {
	generation := a.generation.Add(1)

	type outcome struct {
		tools []domain.Tool
		err   error
	}
	outcomes := make([]outcome, len(a.loaders))

	var wg sync.WaitGroup
	for i, loader := range a.loaders {
		wg.Add(1)
		go func(i int, loader source.Loader) {
			defer wg.Done()
			started := time.Now()
			tools, err := loader.Load(ctx)
			a.metrics.ObserveLoad(string(loader.Source()), time.Since(started), err != nil)
			outcomes[i] = outcome{tools: tools, err: err}
		}(i, loader)
	}
	wg.Wait()

	result := Result{Generation: generation}
	merged := make([]domain.Tool, 0)
	owner := make(map[string]domain.SourceType)
	for i, loader := range a.loaders {
		src := loader.Source()
		if outcomes[i].err != nil {
			a.logger.Warn("source load failed, degrading to empty",
				zap.String("source", string(src)), zap.Error(outcomes[i].err))
			result.Errors = append(result.Errors, source.Error{Source: src, Err: outcomes[i].err})
			a.metrics.SetToolCount(string(src), 0)
			continue
		}
		a.metrics.SetToolCount(string(src), len(outcomes[i].tools))
		for _, tool := range outcomes[i].tools {
			if winner, collision := owner[tool.ID]; collision {
				warning := fmt.Sprintf("id %q from source %s shadowed by source %s", tool.ID, src, winner)
				a.logger.Warn("tool id collision", zap.String("id", tool.ID),
					zap.String("source", string(src)), zap.String("winner", string(winner)))
				result.Warnings = append(result.Warnings, warning)
				continue
			}
			owner[tool.ID] = src
			merged = append(merged, tool)
		}
	}
	result.Tools = merged
	return result
}

// RefreshSource invalidates exactly one source's cache and reloads only
// that loader. The returned Result carries that source's tools alone.
func (a *Aggregator) RefreshSource(ctx context.Context, src domain.SourceType) (Result, error) {
	loader := a.loaderFor(src)
	if loader == nil {
		return Result{}, domain.E(domain.CodeNotFound, "aggregate.RefreshSource",
			fmt.Sprintf("no loader for source %q", src), nil)
	}

	generation := a.generation.Add(1)
	loader.Invalidate()

	started := time.Now()
	tools, err := loader.Load(ctx)
	a.metrics.ObserveLoad(string(src), time.Since(started), err != nil)

	result := Result{Generation: generation}
	if err != nil {
		a.logger.Warn("source refresh failed, degrading to empty",
			zap.String("source", string(src)), zap.Error(err))
		result.Errors = append(result.Errors, source.Error{Source: src, Err: err})
		a.metrics.SetToolCount(string(src), 0)
		return result, nil
	}
	result.Tools = tools
	a.metrics.SetToolCount(string(src), len(tools))
	return result, nil
}

// InvalidateAll drops every source cache so the next LoadAll refetches.
func (a *Aggregator) InvalidateAll() {
	for _, loader := range a.loaders {
		loader.Invalidate()
	}
}

func (a *Aggregator) loaderFor(src domain.SourceType) source.Loader {
	for _, loader := range a.loaders {
		if loader.Source() == src {
			return loader
		}
	}
	return nil
}

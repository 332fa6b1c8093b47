package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/domain"
	"github.com/jin-never/logicworld-sub001/internal/source"
)

type stubLoader struct {
	src   domain.SourceType
	tools []domain.Tool
	err   error
	delay time.Duration

	mu          sync.Mutex
	loads       int
	invalidated int
}

func (s *stubLoader) Source() domain.SourceType { return s.src }

func (s *stubLoader) Load(ctx context.Context) ([]domain.Tool, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return domain.CloneTools(s.tools), nil
}

func (s *stubLoader) Invalidate() {
	s.mu.Lock()
	s.invalidated++
	s.mu.Unlock()
}

func (s *stubLoader) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func tool(id string, src domain.SourceType) domain.Tool {
	return domain.Tool{ID: id, Name: id, SourceType: src, OwnerID: "u1", ApprovalStatus: domain.ApprovalDraft}
}

func newTestAggregator(t *testing.T, loaders ...source.Loader) *Aggregator {
	t.Helper()
	agg, err := New(loaders, nil, zap.NewNop())
	require.NoError(t, err)
	return agg
}

func TestLoadAll_MergesInFixedSourceOrder(t *testing.T) {
	agg := newTestAggregator(t,
		// Registration order deliberately scrambled.
		&stubLoader{src: domain.SourceUser, tools: []domain.Tool{tool("u1-tool", domain.SourceUser)}},
		&stubLoader{src: domain.SourceSystem, tools: []domain.Tool{tool("s1", domain.SourceSystem)}},
		&stubLoader{src: domain.SourceMCP, tools: []domain.Tool{tool("m1", domain.SourceMCP)}},
	)

	result := agg.LoadAll(context.Background())
	require.Empty(t, result.Errors)
	require.Equal(t, []string{"s1", "m1", "u1-tool"}, toolIDs(result.Tools))
}

func TestLoadAll_OneFailingSourceDegrades(t *testing.T) {
	agg := newTestAggregator(t,
		&stubLoader{src: domain.SourceSystem, tools: []domain.Tool{tool("s1", domain.SourceSystem)}},
		&stubLoader{src: domain.SourceAI, tools: []domain.Tool{tool("a1", domain.SourceAI)}},
		&stubLoader{src: domain.SourceMCP, err: errors.New("backend down")},
		&stubLoader{src: domain.SourceAPI, tools: []domain.Tool{tool("p1", domain.SourceAPI)}},
		&stubLoader{src: domain.SourceUser, tools: []domain.Tool{tool("u1-tool", domain.SourceUser)}},
	)

	result := agg.LoadAll(context.Background())
	require.Len(t, result.Errors, 1)
	require.Equal(t, domain.SourceMCP, result.Errors[0].Source)
	require.Equal(t, []string{"s1", "a1", "p1", "u1-tool"}, toolIDs(result.Tools))
}

func TestLoadAll_SlowLoaderDoesNotBlockSettlement(t *testing.T) {
	slow := &stubLoader{src: domain.SourceAPI, delay: 50 * time.Millisecond,
		tools: []domain.Tool{tool("p1", domain.SourceAPI)}}
	agg := newTestAggregator(t,
		&stubLoader{src: domain.SourceSystem, tools: []domain.Tool{tool("s1", domain.SourceSystem)}},
		slow,
	)

	started := time.Now()
	result := agg.LoadAll(context.Background())
	require.GreaterOrEqual(t, time.Since(started), 50*time.Millisecond)
	require.Equal(t, []string{"s1", "p1"}, toolIDs(result.Tools))
}

func TestLoadAll_IDCollisionShadowsWithWarning(t *testing.T) {
	agg := newTestAggregator(t,
		&stubLoader{src: domain.SourceSystem, tools: []domain.Tool{tool("dup", domain.SourceSystem)}},
		&stubLoader{src: domain.SourceUser, tools: []domain.Tool{tool("dup", domain.SourceUser)}},
	)

	result := agg.LoadAll(context.Background())
	require.Len(t, result.Tools, 1)
	require.Equal(t, domain.SourceSystem, result.Tools[0].SourceType)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], `id "dup"`)
}

func TestRefreshSource_TouchesOnlyThatLoader(t *testing.T) {
	system := &stubLoader{src: domain.SourceSystem, tools: []domain.Tool{tool("s1", domain.SourceSystem)}}
	api := &stubLoader{src: domain.SourceAPI, tools: []domain.Tool{tool("p1", domain.SourceAPI)}}
	agg := newTestAggregator(t, system, api)

	result, err := agg.RefreshSource(context.Background(), domain.SourceAPI)
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, toolIDs(result.Tools))
	require.Equal(t, 1, api.invalidated)
	require.Equal(t, 0, system.invalidated)
	require.Equal(t, 0, system.loadCount())
}

func TestRefreshSource_UnknownSource(t *testing.T) {
	agg := newTestAggregator(t, &stubLoader{src: domain.SourceSystem})
	_, err := agg.RefreshSource(context.Background(), domain.SourceMCP)
	require.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestGenerations_AreMonotonic(t *testing.T) {
	agg := newTestAggregator(t, &stubLoader{src: domain.SourceSystem})

	first := agg.LoadAll(context.Background())
	second, err := agg.RefreshSource(context.Background(), domain.SourceSystem)
	require.NoError(t, err)
	third := agg.LoadAll(context.Background())

	require.Less(t, first.Generation, second.Generation)
	require.Less(t, second.Generation, third.Generation)
}

func TestNew_RejectsDuplicateLoaders(t *testing.T) {
	_, err := New([]source.Loader{
		&stubLoader{src: domain.SourceSystem},
		&stubLoader{src: domain.SourceSystem},
	}, nil, zap.NewNop())
	require.Error(t, err)
}

func toolIDs(tools []domain.Tool) []string {
	ids := make([]string, 0, len(tools))
	for _, tool := range tools {
		ids = append(ids, tool.ID)
	}
	return ids
}

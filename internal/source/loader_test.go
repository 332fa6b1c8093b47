package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/domain"
)

func loaderTable(t *testing.T) *category.Table {
	t.Helper()
	table, err := category.NewTable(
		[]category.Definition{
			{ID: "ai_assistant"},
			{ID: "document_processing"},
			{ID: "data_retrieval"},
		},
		nil,
		[]category.KeywordRule{
			{Keyword: "pdf", Category: "document_processing"},
			{Keyword: "weather", Category: "data_retrieval"},
		},
		"ai_assistant",
	)
	require.NoError(t, err)
	return table
}

func staticBackend(payload string) Backend {
	return BackendFunc(func(context.Context) ([]json.RawMessage, error) {
		return decodeRecordList([]byte(payload))
	})
}

func failingBackend(err error) Backend {
	return BackendFunc(func(context.Context) ([]json.RawMessage, error) {
		return nil, err
	})
}

func TestSystemLoader_TranslatesAndInfersCategory(t *testing.T) {
	loader := NewSystemLoader(staticBackend(`[
		{"id": "sys-1", "name": "Weather lookup", "type": "search"},
		{"id": "sys-2", "name": "Chat", "category": "ai_assistant"}
	]`), loaderTable(t), time.Minute, zap.NewNop())

	tools, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)

	require.Equal(t, domain.SourceSystem, tools[0].SourceType)
	require.Equal(t, domain.ApprovalNotApplicable, tools[0].ApprovalStatus)
	require.True(t, tools[0].Enabled)
	require.Equal(t, "data_retrieval", tools[0].FunctionalCategory)
	require.Equal(t, "ai_assistant", tools[1].FunctionalCategory)
}

func TestLoader_ServesCacheWithinTTL(t *testing.T) {
	var calls atomic.Int32
	backend := BackendFunc(func(context.Context) ([]json.RawMessage, error) {
		calls.Add(1)
		return decodeRecordList([]byte(`[{"id": "sys-1", "name": "one"}]`))
	})
	loader := NewSystemLoader(backend, loaderTable(t), time.Minute, zap.NewNop())

	_, err := loader.Load(context.Background())
	require.NoError(t, err)
	_, err = loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	loader.Invalidate()
	_, err = loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestLoader_ExpiredCacheRefetches(t *testing.T) {
	var calls atomic.Int32
	backend := BackendFunc(func(context.Context) ([]json.RawMessage, error) {
		calls.Add(1)
		return decodeRecordList([]byte(`[{"id": "sys-1", "name": "one"}]`))
	})
	loader := NewSystemLoader(backend, loaderTable(t), 50*time.Millisecond, zap.NewNop())

	clock := time.Now()
	loader.now = func() time.Time { return clock }

	_, err := loader.Load(context.Background())
	require.NoError(t, err)

	clock = clock.Add(100 * time.Millisecond)
	_, err = loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestLoader_BackendErrorSurfacesAsUnavailable(t *testing.T) {
	loader := NewSystemLoader(failingBackend(errors.New("boom")), loaderTable(t), time.Minute, zap.NewNop())

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	require.True(t, domain.IsCode(err, domain.CodeUnavailable))
}

func TestLoader_MalformedRecordSkipped(t *testing.T) {
	loader := NewSystemLoader(staticBackend(`[
		{"id": "ok", "name": "fine"},
		"just a string",
		{"id": "no-name"}
	]`), loaderTable(t), time.Minute, zap.NewNop())

	tools, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "ok", tools[0].ID)
}

func TestMCPLoader_ApprovedMapping(t *testing.T) {
	loader := NewMCPLoader(staticBackend(`[
		{"id": "m1", "name": "weather server", "ownerId": "u1", "approved": false},
		{"id": "m2", "name": "files", "ownerId": "u1", "approved": true},
		{"id": "m3", "name": "fresh", "ownerId": "u1"}
	]`), loaderTable(t), time.Minute, zap.NewNop())

	tools, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 3)

	require.Equal(t, domain.SourceMCP, tools[0].SourceType)
	require.Equal(t, domain.ApprovalPending, tools[0].ApprovalStatus)
	require.Equal(t, domain.ApprovalApproved, tools[1].ApprovalStatus)
	require.Equal(t, domain.ApprovalDraft, tools[2].ApprovalStatus)
}

func TestMCPLoader_SkipsOwnerlessRecords(t *testing.T) {
	loader := NewMCPLoader(staticBackend(`[
		{"id": "m1", "name": "orphan"}
	]`), loaderTable(t), time.Minute, zap.NewNop())

	tools, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, tools)
}

func TestAPILoader_ScansSensitiveFields(t *testing.T) {
	loader := NewAPILoader(staticBackend(`[{
		"id": "a1",
		"name": "invoice export",
		"ownerId": "u1",
		"endpoint": "https://api.example.com/export",
		"config": {
			"apiKey": "abc",
			"clientSecret": "def",
			"baseUrl": "https://api.example.com",
			"authHeader": "Bearer"
		}
	}]`), loaderTable(t), time.Minute, zap.NewNop())

	tools, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, []string{"apiKey", "authHeader", "clientSecret"}, tools[0].SensitiveFields)
	require.Equal(t, "https://api.example.com/export", tools[0].Config["endpoint"])
	require.Equal(t, domain.ApprovalDraft, tools[0].ApprovalStatus)
}

func TestUserLoader_MergesLocalSkippingBackendIDs(t *testing.T) {
	local := localListFunc(func() ([]domain.Tool, error) {
		return []domain.Tool{
			{ID: "u-remote", Name: "shadowed", OwnerID: "u1"},
			{ID: "u-local", Name: "local only", OwnerID: "u1"},
		}, nil
	})
	loader := NewUserLoader(staticBackend(`[
		{"id": "u-remote", "name": "remote wins", "ownerId": "u1"}
	]`), local, loaderTable(t), time.Minute, zap.NewNop())

	tools, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	require.Equal(t, "remote wins", tools[0].Name)
	require.Equal(t, "u-local", tools[1].ID)
	require.Equal(t, domain.SourceUser, tools[1].SourceType)
	require.Equal(t, domain.ApprovalDraft, tools[1].ApprovalStatus)
}

func TestUserLoader_LocalStoreFailureDegrades(t *testing.T) {
	local := localListFunc(func() ([]domain.Tool, error) {
		return nil, errors.New("disk gone")
	})
	loader := NewUserLoader(staticBackend(`[
		{"id": "u1-tool", "name": "from backend", "ownerId": "u1"}
	]`), local, loaderTable(t), time.Minute, zap.NewNop())

	tools, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
}

type localListFunc func() ([]domain.Tool, error)

func (f localListFunc) Tools() ([]domain.Tool, error) {
	return f()
}

func TestHTTPBackend_NonSuccessIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, server.Client(), zap.NewNop())
	records, err := backend.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestHTTPBackend_WrappedAndBarePayloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wrapped" {
			_, _ = w.Write([]byte(`{"tools": [{"id": "a"}, {"id": "b"}]}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id": "a"}]`))
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL+"/wrapped", server.Client(), zap.NewNop())
	records, err := backend.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	backend = NewHTTPBackend(server.URL+"/bare", server.Client(), zap.NewNop())
	records, err = backend.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestHTTPBackend_UnparseablePayloadErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>nope</html>`))
	}))
	defer server.Close()

	backend := NewHTTPBackend(server.URL, server.Client(), zap.NewNop())
	_, err := backend.Fetch(context.Background())
	require.Error(t, err)
}

func TestHTTPBackend_TransportErrorPropagates(t *testing.T) {
	backend := NewHTTPBackend("http://127.0.0.1:1", &http.Client{Timeout: 200 * time.Millisecond}, zap.NewNop())
	_, err := backend.Fetch(context.Background())
	require.Error(t, err)
}

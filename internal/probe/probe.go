// Package probe implements the testing collaborators the registry
// delegates to. Probes produce a verdict and never mutate the tool.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// Prober runs a connectivity test against a candidate tool.
type Prober interface {
	Test(ctx context.Context, tool domain.Tool) domain.TestResult
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, tool domain.Tool) domain.TestResult

func (f ProberFunc) Test(ctx context.Context, tool domain.Tool) domain.TestResult {
	return f(ctx, tool)
}

// Set holds one prober per testable source. Sources without an entry get
// an automatic pass (there is nothing to test).
type Set struct {
	MCP Prober
	API Prober
}

// For picks the prober for a source, or an automatic pass.
func (s Set) For(src domain.SourceType) Prober {
	switch src {
	case domain.SourceMCP:
		if s.MCP != nil {
			return s.MCP
		}
	case domain.SourceAPI:
		if s.API != nil {
			return s.API
		}
	}
	return ProberFunc(func(_ context.Context, _ domain.Tool) domain.TestResult {
		return domain.TestResult{
			Success:   true,
			Message:   fmt.Sprintf("no connectivity test for source %q", src),
			Timestamp: time.Now(),
		}
	})
}

const defaultProbeTimeout = 5 * time.Second

// MCPProbe connects to the tool's configured MCP endpoint and lists its
// tools as the connectivity check.
type MCPProbe struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func (p *MCPProbe) Test(ctx context.Context, tool domain.Tool) domain.TestResult {
	endpoint := strings.TrimSpace(tool.Config["endpoint"])
	if endpoint == "" {
		return failure("mcp endpoint is not configured", "")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "toolreg-probe", Version: "1.0.0"}, nil)
	transport := &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: p.HTTPClient,
	}
	session, err := client.Connect(probeCtx, transport, nil)
	if err != nil {
		return failure("connect failed", err.Error())
	}
	defer session.Close()

	listed, err := session.ListTools(probeCtx, nil)
	if err != nil {
		return failure("tools/list failed", err.Error())
	}

	return domain.TestResult{
		Success:   true,
		Message:   fmt.Sprintf("mcp server reachable, %d tools listed", len(listed.Tools)),
		Timestamp: time.Now(),
	}
}

// APIProbe issues one bounded request against the tool's configured
// endpoint. Any response below 400 counts as reachable.
type APIProbe struct {
	Timeout time.Duration
	Client  *http.Client
	Logger  *zap.Logger
}

func (p *APIProbe) Test(ctx context.Context, tool domain.Tool) domain.TestResult {
	endpoint := strings.TrimSpace(tool.Config["endpoint"])
	if endpoint == "" {
		return failure("api endpoint is not configured", "")
	}

	method := strings.ToUpper(strings.TrimSpace(tool.Config["method"]))
	if method == "" {
		method = http.MethodGet
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, method, endpoint, nil)
	if err != nil {
		return failure("build request failed", err.Error())
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return failure("request failed", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return failure(fmt.Sprintf("endpoint returned %d", resp.StatusCode), resp.Status)
	}
	return domain.TestResult{
		Success:   true,
		Message:   fmt.Sprintf("endpoint reachable (%d)", resp.StatusCode),
		Timestamp: time.Now(),
	}
}

func failure(message, details string) domain.TestResult {
	return domain.TestResult{
		Success:   false,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

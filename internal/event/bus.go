// Package event is the typed publish/subscribe surface of the registry.
// Consumers (the editor UI, diagram layer) subscribe to change events and
// re-query the registry; they never mutate registry state from a handler.
package event

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/domain"
	"github.com/jin-never/logicworld-sub001/internal/source"
)

// Name identifies an event kind.
type Name string

const (
	Initialized       Name = "initialized"
	ToolAdded         Name = "toolAdded"
	ToolUpdated       Name = "toolUpdated"
	ToolDeleted       Name = "toolDeleted"
	ToolTested        Name = "toolTested"
	ApprovalRequested Name = "approvalRequested"
	ToolApproved      Name = "toolApproved"
	SourceRefreshed   Name = "sourceRefreshed"
)

// Event is one registry change notification. Exactly one payload field is
// set, matching Name.
type Event struct {
	Name Name

	Initialized       *InitializedPayload
	ToolAdded         *ToolPayload
	ToolUpdated       *ToolPayload
	ToolDeleted       *ToolDeletedPayload
	ToolTested        *ToolTestedPayload
	ApprovalRequested *ApprovalRequestedPayload
	ToolApproved      *ToolApprovedPayload
	SourceRefreshed   *SourceRefreshedPayload
}

type InitializedPayload struct {
	ToolCount int
	Errors    []source.Error
	Warnings  []string
}

type ToolPayload struct {
	Tool domain.Tool
}

type ToolDeletedPayload struct {
	ToolID string
	Tool   domain.Tool
}

type ToolTestedPayload struct {
	Tool    domain.Tool
	Verdict domain.TestResult
}

type ApprovalRequestedPayload struct {
	Tool    domain.Tool
	Request domain.ApprovalRequest
}

type ToolApprovedPayload struct {
	Original  domain.Tool
	Converted domain.Tool
}

type SourceRefreshedPayload struct {
	Source    domain.SourceType
	ToolCount int
	Errors    []source.Error
}

// Bus fans events out to subscriber channels. Sends never block: a
// subscriber that falls behind its buffer misses events and is expected
// to re-query the registry, which is the contract anyway.
type Bus struct {
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

const subscriberBuffer = 16

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger: logger.Named("event_bus"),
		subs:   make(map[chan Event]struct{}),
	}
}

// Subscribe registers a listener. The channel is closed and removed when
// ctx is canceled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	if ctx != nil {
		go func() {
			<-ctx.Done()
			b.remove(ch)
		}()
	}
	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("subscriber lagging, dropping event", zap.String("event", string(evt.Name)))
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}

func (b *Bus) remove(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

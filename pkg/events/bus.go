package events

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Bus publishes events.
type Bus interface {
	Publish(ctx context.Context, event *PagesCreated) error
	Close()
}

// MemoryBus keeps published events in memory. It is used by tests and dry
// runs.
type MemoryBus struct {
	mu     sync.Mutex
	events []*PagesCreated

	// Err, when set, is returned by Publish instead of recording the event.
	Err error
}

// NewMemoryBus creates an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish implements Bus.
func (b *MemoryBus) Publish(ctx context.Context, event *PagesCreated) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Err != nil {
		return b.Err
	}
	b.events = append(b.events, event)
	return nil
}

// Events returns the events published so far.
func (b *MemoryBus) Events() []*PagesCreated {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*PagesCreated, len(b.events))
	copy(out, b.events)
	return out
}

// Close implements Bus.
func (b *MemoryBus) Close() {}

// LogBus writes events to a logger. It stands in for a broker when none is
// configured.
type LogBus struct {
	logger hclog.Logger
}

// NewLogBus creates a LogBus.
func NewLogBus(logger hclog.Logger) *LogBus {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LogBus{logger: logger.Named("events")}
}

// Publish implements Bus.
func (b *LogBus) Publish(ctx context.Context, event *PagesCreated) error {
	b.logger.Info("event",
		"id", event.ID,
		"type", event.Type,
		"space_id", event.SpaceID,
		"workspace_id", event.WorkspaceID,
		"pages", len(event.PageIDs),
	)
	return nil
}

// Close implements Bus.
func (b *LogBus) Close() {}

// Fanout publishes every event to each of its buses in order. Every bus is
// tried; the errors are combined.
type Fanout struct {
	buses []Bus
}

// NewFanout creates a Fanout over buses.
func NewFanout(buses ...Bus) *Fanout {
	return &Fanout{buses: buses}
}

// Publish implements Bus.
func (f *Fanout) Publish(ctx context.Context, event *PagesCreated) error {
	var result *multierror.Error
	for _, b := range f.buses {
		if err := b.Publish(ctx, event); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Close closes every bus.
func (f *Fanout) Close() {
	for _, b := range f.buses {
		b.Close()
	}
}

// Package memory records published events in process, standing in for the
// Pub/Sub completion-event publisher when no events topic is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Record captures one published audit event.
type Record struct {
	Topic   string
	Payload any
}

// Publisher appends every publish to an in-process log that tests and
// local runs can inspect.
type Publisher struct {
	mu      sync.Mutex
	records []Record
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish appends the event to the log. The returned ID is its 1-based
// position.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, Record{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.records)), nil
}

// Messages returns a copy of everything published so far, in order.
func (p *Publisher) Messages() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Record(nil), p.records...)
}

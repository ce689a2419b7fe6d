// Package memory keeps crawl completion notices in process memory. It stands
// in for Pub/Sub when no topic is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// DefaultRetain is how many notices New keeps.
const DefaultRetain = 256

// Notice is one publish call.
type Notice struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher retains the most recent notices, dropping the oldest.
type Publisher struct {
	mu     sync.RWMutex
	retain int
	seq    int
	recent []Notice
	notify chan struct{}
}

// New returns a Publisher that keeps DefaultRetain notices.
func New() *Publisher {
	return NewWithRetain(DefaultRetain)
}

// NewWithRetain returns a Publisher that keeps at most retain notices.
func NewWithRetain(retain int) *Publisher {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &Publisher{retain: retain, notify: make(chan struct{}, 1)}
}

// Publish records the notice and returns a sequential ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	p.seq++
	n := Notice{ID: fmt.Sprintf("memory-%d", p.seq), Topic: topic, Payload: payload}
	if len(p.recent) == p.retain {
		p.recent = append(p.recent[:0], p.recent[1:]...)
	}
	p.recent = append(p.recent, n)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return n.ID, nil
}

// Published is signaled after each publish.
func (p *Publisher) Published() <-chan struct{} {
	return p.notify
}

// Messages returns the retained notices, oldest first.
func (p *Publisher) Messages() []Notice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Notice(nil), p.recent...)
}

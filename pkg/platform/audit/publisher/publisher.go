// Package publisher decouples domain services from the audit store. Services
// call Emit and move on; persistence happens synchronously by default or on a
// background goroutine when an async buffer is configured.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	audit "vaxtrack/pkg/platform/audit"
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox  chan audit.Event
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once

	// mu orders enqueues against Close: an event is either in the buffer
	// before the drain goroutine's final sweep, or appended synchronously.
	mu      sync.RWMutex
	closing bool
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with the given
// channel capacity. Emit then never blocks on the store; Close drains.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. In async mode a full buffer or a closing
// publisher falls back to a synchronous append rather than dropping the
// event: audit loss is worse than a slow request in this domain.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	if p.closing {
		p.mu.RUnlock()
		// The drain goroutine may already be gone; do not enqueue.
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		p.mu.RUnlock()
		return nil
	default:
		p.mu.RUnlock()
		return p.store.Append(ctx, event)
	}
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.inbox:
			p.append(event)
		case <-p.closed:
			for {
				select {
				case event := <-p.inbox:
					p.append(event)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) append(event audit.Event) {
	if err := p.store.Append(context.Background(), event); err != nil {
		p.logger.Error("audit append failed",
			"action", event.Action,
			"error", err,
		)
	}
}

// Close stops the background goroutine after draining buffered events.
// Setting closing before signalling the goroutine guarantees every enqueued
// event precedes the final sweep; later Emits append synchronously.
func (p *Publisher) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closing = true
		p.mu.Unlock()
		close(p.closed)
	})
	p.wg.Wait()
}

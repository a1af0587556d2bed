// Package notify delivers user-facing messages without blocking the frame loop.
//
// Messages are queued on a bounded channel and fanned out to every sink by a
// single goroutine. A full queue drops the message; a failing sink is logged
// and otherwise ignored. Nothing here ever reports back to the caller.
package notify

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultQueueSize is the number of pending messages the Dispatcher buffers.
const DefaultQueueSize = 16

// sinkTimeout bounds how long a single sink may spend on one message.
const sinkTimeout = 10 * time.Second

// Notifier shows a message to the user.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, message string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, message string) error {
	return f(ctx, message)
}

// Dispatcher fans messages out to its sinks on a background goroutine.
type Dispatcher struct {
	sinks   []Notifier
	queue   chan string
	wg      sync.WaitGroup
	mu      sync.Mutex
	dropped int
}

// NewDispatcher creates a Dispatcher with the given queue size and sinks.
func NewDispatcher(queueSize int, sinks ...Notifier) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		sinks: sinks,
		queue: make(chan string, queueSize),
	}
}

// Start launches the delivery goroutine. It exits when ctx is cancelled
// after draining whatever is already queued.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case msg := <-d.queue:
				d.deliver(ctx, msg)
			case <-ctx.Done():
				for {
					select {
					case msg := <-d.queue:
						d.deliver(context.Background(), msg)
					default:
						return
					}
				}
			}
		}
	}()
}

// Wait blocks until the delivery goroutine has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Notify queues a message. It never blocks; it returns false when the queue
// was full and the message was dropped.
func (d *Dispatcher) Notify(message string) bool {
	select {
	case d.queue <- message:
		return true
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		log.Printf("notification dropped: %q", message)
		return false
	}
}

// Dropped returns how many messages have been dropped so far.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) deliver(ctx context.Context, msg string) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := s.Notify(sctx, msg); err != nil {
			log.Printf("notifier failed: %v", err)
		}
		cancel()
	}
}

// LogNotifier writes messages to the standard logger.
type LogNotifier struct{}

// Notify logs the message.
func (LogNotifier) Notify(_ context.Context, message string) error {
	log.Printf("notification: %s", message)
	return nil
}

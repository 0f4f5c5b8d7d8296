package sessionkit

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// eventDispatcher hands session events to the sink on its own goroutine.
//
// Events raised by concurrent operations can reach the queue out of commit
// order. The dispatcher takes whatever is queued as one batch and delivers
// it sorted by View version, so a sink sees a teardown after the login it
// ended even when the two goroutines raced to enqueue.
type eventDispatcher struct {
	sink         EventSink
	dropIfFull   bool
	flushTimeout time.Duration

	queue    chan SessionEvent
	stop     chan struct{}
	finished chan struct{}

	// ctx is handed to the sink and cancelled when the flush deadline passes.
	ctx    context.Context
	cancel context.CancelFunc

	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newEventDispatcher(cfg EventsConfig, sink EventSink) *eventDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &eventDispatcher{
		sink:         sink,
		dropIfFull:   cfg.DropIfFull,
		flushTimeout: cfg.FlushTimeout,
		queue:        make(chan SessionEvent, max(cfg.BufferSize, 1)),
		stop:         make(chan struct{}),
		finished:     make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	go d.run()
	return d
}

func (d *eventDispatcher) run() {
	defer close(d.finished)

	batch := make([]SessionEvent, 0, cap(d.queue))
	for {
		select {
		case ev := <-d.queue:
			d.deliver(d.take(append(batch[:0], ev)))
		case <-d.stop:
			for {
				next := d.take(batch[:0])
				if len(next) == 0 {
					return
				}
				d.deliver(next)
			}
		}
	}
}

// take appends everything already queued to batch and orders it by version.
func (d *eventDispatcher) take(batch []SessionEvent) []SessionEvent {
queued:
	for len(batch) < cap(batch) {
		select {
		case ev := <-d.queue:
			batch = append(batch, ev)
		default:
			break queued
		}
	}
	slices.SortStableFunc(batch, func(a, b SessionEvent) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return batch
}

// deliver passes batch to the sink. Once the flush deadline has cancelled
// d.ctx the rest is counted as dropped.
func (d *eventDispatcher) deliver(batch []SessionEvent) {
	for i, ev := range batch {
		if d.ctx.Err() != nil {
			d.dropped.Add(uint64(len(batch) - i))
			return
		}
		d.sink.Emit(d.ctx, ev)
	}
}

// Emit queues event. With DropIfFull it never blocks and counts what it
// sheds; otherwise it waits for room, ctx, or Close.
func (d *eventDispatcher) Emit(ctx context.Context, event SessionEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events and flushes the queue. With a FlushTimeout
// the sink's context is cancelled when it expires and whatever is still
// queued counts as dropped.
func (d *eventDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		if d.flushTimeout > 0 {
			timer := time.AfterFunc(d.flushTimeout, d.cancel)
			defer timer.Stop()
		}
		<-d.finished
		d.cancel()
	})
}

func (d *eventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit give up on a full queue instead of holding the
	// obtain or refresh request that produced the event. Lost events are
	// counted by Dropped.
	DropIfFull bool
}

// Dispatcher hands token events to a Sink from one background goroutine, so
// a slow sink never adds latency to login, refresh or logout. A nil
// *Dispatcher is valid and discards everything.
type Dispatcher struct {
	sink  Sink
	lossy bool
	queue chan Event

	closing   chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	done      sync.WaitGroup

	lost atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:    sink,
		lossy:   cfg.DropIfFull,
		queue:   make(chan Event, max(cfg.BufferSize, 1)),
		closing: make(chan struct{}),
	}
	d.done.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.done.Done()
	ctx := context.Background()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		case <-d.closing:
			d.drain(ctx)
			return
		}
	}
}

// drain delivers events queued before Close.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		default:
			return
		}
	}
}

// Emit queues ev for the sink. In lossy mode a full queue drops the event;
// otherwise Emit waits for room until ctx ends or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if d.lossy {
		select {
		case d.queue <- ev:
		case <-d.closing:
		default:
			d.lost.Add(1)
		}
		return
	}

	var cancelled <-chan struct{}
	if ctx != nil {
		cancelled = ctx.Done()
	}
	select {
	case d.queue <- ev:
	case <-cancelled:
		d.lost.Add(1)
	case <-d.closing:
	}
}

// Close rejects further events, delivers what is queued and waits for the
// sink to return.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.closing)
		d.done.Wait()
	})
}

// Dropped returns how many events never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.lost.Load()
}

package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrSystemClosed is returned for calls made after the System was closed.
var ErrSystemClosed = errors.New("actor system closed")

// Operation is the unit of work an actor executes.
type Operation func(ctx context.Context) error

const (
	envelopeQueued int32 = iota
	envelopeRunning
	envelopeAbandoned
)

type envelope struct {
	ctx    context.Context
	op     Operation
	result chan error
	state  *atomic.Int32
}

// Mailbox serializes the operations of one actor.
type Mailbox struct {
	id      string
	queue   chan envelope
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newMailbox(id string, size int) *Mailbox {
	m := &Mailbox{
		id:      id,
		queue:   make(chan envelope, size),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go m.run()
	return m
}

// ID returns the actor id this mailbox serves.
func (m *Mailbox) ID() string {
	return m.id
}

func (m *Mailbox) run() {
	defer close(m.stopped)
	for {
		select {
		case env := <-m.queue:
			m.process(env)
		case <-m.stop:
			m.drain()
			return
		}
	}
}

func (m *Mailbox) process(env envelope) {
	// caller gave up or deadline passed while queued: skip without side effects
	if !env.state.CompareAndSwap(envelopeQueued, envelopeRunning) {
		env.result <- env.ctx.Err()
		return
	}
	if err := env.ctx.Err(); err != nil {
		env.result <- err
		return
	}
	env.result <- env.op(env.ctx)
}

func (m *Mailbox) drain() {
	for {
		select {
		case env := <-m.queue:
			env.result <- ErrSystemClosed
		default:
			return
		}
	}
}

// Do enqueues op and waits for its result. If ctx ends while op is still
// queued, op is skipped and ctx.Err() returned. Once op has started, Do
// waits for it: op sees the same ctx and reports whether it took effect.
func (m *Mailbox) Do(ctx context.Context, op Operation) error {
	env := envelope{ctx: ctx, op: op, result: make(chan error, 1), state: new(atomic.Int32)}

	select {
	case <-m.stop:
		return ErrSystemClosed
	default:
	}

	select {
	case m.queue <- env:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stop:
		return ErrSystemClosed
	}

	select {
	case err := <-env.result:
		return err
	case <-ctx.Done():
		if env.state.CompareAndSwap(envelopeQueued, envelopeAbandoned) {
			return ctx.Err()
		}
		return <-env.result
	case <-m.stopped:
		select {
		case err := <-env.result:
			return err
		default:
			return ErrSystemClosed
		}
	}
}

func (m *Mailbox) close() {
	m.once.Do(func() { close(m.stop) })
	<-m.stopped
}

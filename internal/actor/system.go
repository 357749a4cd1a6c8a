package actor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"counter-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "actor").Logger()

const DefaultMailboxSize = 64

// System owns the mailboxes of every actor living in this process.
type System struct {
	mu          sync.Mutex
	mailboxes   map[string]*Mailbox
	mailboxSize int
	callTimeout time.Duration
	closed      bool
}

// NewSystem creates a System. A zero callTimeout leaves deadlines to the caller.
func NewSystem(mailboxSize int, callTimeout time.Duration) *System {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	return &System{
		mailboxes:   make(map[string]*Mailbox),
		mailboxSize: mailboxSize,
		callTimeout: callTimeout,
	}
}

func (s *System) mailbox(id string) (*Mailbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSystemClosed
	}

	m, ok := s.mailboxes[id]
	if !ok {
		m = newMailbox(id, s.mailboxSize)
		s.mailboxes[id] = m
		logger.Debug().Str("actor", id).Msg("Spawned actor")
	}
	return m, nil
}

// Call runs op on the actor identified by id, after every operation queued
// before it. An operation that failed or never ran because the deadline
// passed is reported as entity.ErrTimeout. One that completed is reported
// as it completed, even past the deadline.
func (s *System) Call(ctx context.Context, id string, op Operation) error {
	m, err := s.mailbox(id)
	if err != nil {
		return err
	}

	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	err = m.Do(ctx, op)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: actor %s: %w", entity.ErrTimeout, id, err)
	}
	return err
}

// Len returns the number of live actors.
func (s *System) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mailboxes)
}

// Close stops every mailbox. Queued operations fail with ErrSystemClosed;
// running operations finish first.
func (s *System) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	mailboxes := s.mailboxes
	s.mailboxes = make(map[string]*Mailbox)
	s.mu.Unlock()

	for _, m := range mailboxes {
		m.close()
	}
}

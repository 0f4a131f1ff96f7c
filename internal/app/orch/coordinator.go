// Package orch holds the connection coordinator: the single goroutine that
// owns every live peer session and its candidate queue.
package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/rs/zerolog/log"
)

const DefaultQueueSize = 256

// ErrProtocolViolation stops the loop. It means a message type the loop
// does not know reached the queue.
var ErrProtocolViolation = errors.New("coordinator protocol violation")

type Options struct {
	QueueSize     int
	IDSource      app.IDSource
	MaxIDAttempts int
}

// Coordinator serializes all session mutations through one queue. Callers
// (HTTP handlers, engine callbacks) only enqueue and wait; Run is the sole
// writer of the registry and candidate buffer.
type Coordinator struct {
	engine  core.PeerEngine
	metrics *metrics.Metrics

	inbox chan message
	done  chan struct{}

	// Loop-owned.
	registry  *app.Registry
	buffer    *app.CandidateBuffer
	ids       *app.Allocator
	followUps []message
}

var _ core.SessionService = (*Coordinator)(nil)

func New(engine core.PeerEngine, m *metrics.Metrics, opts Options) *Coordinator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if m == nil {
		m = metrics.New()
	}
	reg := app.NewRegistry()
	return &Coordinator{
		engine:   engine,
		metrics:  m,
		inbox:    make(chan message, opts.QueueSize),
		done:     make(chan struct{}),
		registry: reg,
		buffer:   app.NewCandidateBuffer(),
		ids:      app.NewAllocator(reg, opts.IDSource).WithMaxAttempts(opts.MaxIDAttempts),
	}
}

// Done is closed once Run has returned.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Run processes messages one at a time until ctx is cancelled, tearing down
// whatever is still live on the way out. It returns an error only for a
// protocol violation.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	log.Info().Str("module", "app.orch").Int("queue_size", cap(c.inbox)).Msg("coordinator started")

	for {
		select {
		case <-ctx.Done():
			if err := c.cleanup("shutdown"); err != nil {
				log.Error().Err(err).Str("module", "app.orch").Msg("cleanup on shutdown")
			}
			c.drainInbox()
			log.Info().Str("module", "app.orch").Msg("coordinator stopped")
			return nil
		case m := <-c.inbox:
			if err := c.process(m); err != nil {
				log.Error().Err(err).Str("module", "app.orch").Msg("coordinator loop aborted")
				_ = c.cleanup("aborted")
				c.drainInbox()
				return err
			}
		}
	}
}

// process applies m and then every follow-up it synthesized, before the
// next inbound message is looked at.
func (c *Coordinator) process(m message) error {
	if err := c.dispatch(m); err != nil {
		return err
	}
	for len(c.followUps) > 0 {
		next := c.followUps[0]
		c.followUps = c.followUps[1:]
		if err := c.dispatch(next); err != nil {
			return err
		}
	}
	c.metrics.LiveSessions.Set(float64(c.registry.Len()))
	return nil
}

func (c *Coordinator) dispatch(m message) error {
	switch m := m.(type) {
	case reserveSession:
		c.handleReserve(m)
	case registerSession:
		c.handleRegister(m)
	case abandonSession:
		c.handleAbandon(m)
	case addRemoteCandidate:
		c.handleAddRemoteCandidate(m)
	case drainLocalCandidates:
		c.handleDrain(m)
	case localCandidateDiscovered:
		c.handleLocalCandidate(m)
	case peerStateChanged:
		c.handlePeerState(m)
	case channelOpened:
		c.handleChannelOpened(m)
	case channelMessage:
		c.handleChannelMessage(m)
	case teardownSession:
		c.handleTeardown(m)
	case cleanupAll:
		m.reply <- c.cleanup("cleanup")
	case snapshotSessions:
		c.handleSnapshot(m)
	default:
		return fmt.Errorf("%w: unexpected message %T", ErrProtocolViolation, m)
	}
	c.metrics.Messages.WithLabelValues(m.kind()).Inc()
	return nil
}

// drainInbox answers whatever is still queued once the loop has stopped, so
// no caller waits on a reply that will never come and no handle is leaked.
func (c *Coordinator) drainInbox() {
	for {
		select {
		case m := <-c.inbox:
			switch m := m.(type) {
			case reserveSession:
				m.reply <- reserveResult{err: domain.ErrCoordinatorStopped}
			case registerSession:
				if m.handle != nil {
					_ = m.handle.Close()
				}
				m.reply <- domain.ErrCoordinatorStopped
			case addRemoteCandidate:
				m.reply <- domain.ErrCoordinatorStopped
			case drainLocalCandidates:
				m.reply <- drainResult{cands: []domain.Candidate{}}
			case teardownSession:
				if m.reply != nil {
					m.reply <- struct{}{}
				}
			case cleanupAll:
				m.reply <- nil
			case snapshotSessions:
				m.reply <- nil
			}
		default:
			return
		}
	}
}

// send enqueues m unless the loop is gone or ctx expires first.
func (c *Coordinator) send(ctx context.Context, m message) error {
	select {
	case <-c.done:
		return domain.ErrCoordinatorStopped
	default:
	}
	select {
	case c.inbox <- m:
		return nil
	case <-c.done:
		return domain.ErrCoordinatorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post is used from engine callbacks: no reply, no caller context.
func (c *Coordinator) post(m message) {
	select {
	case c.inbox <- m:
	case <-c.done:
	}
}

// call enqueues the message built around a fresh reply channel and waits
// for the single reply.
func call[T any](ctx context.Context, c *Coordinator, build func(reply chan T) message) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if err := c.send(ctx, build(reply)); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, domain.ErrCoordinatorStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

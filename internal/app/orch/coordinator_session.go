package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

// CreateSession reserves an id, negotiates outside the loop and registers
// the result. A failed negotiation leaves nothing behind.
func (c *Coordinator) CreateSession(ctx context.Context, offerSDP string, replaces domain.SessionID) (domain.Answer, error) {
	res, err := call(ctx, c, func(reply chan reserveResult) message {
		return reserveSession{replaces: replaces, reply: reply}
	})
	if err != nil {
		return domain.Answer{}, err
	}
	if res.err != nil {
		return domain.Answer{}, res.err
	}
	id := res.id

	handle, answer, err := c.engine.Negotiate(ctx, offerSDP, c.eventsFor(id))
	if err != nil {
		c.metrics.NegotiationFailures.Inc()
		c.abandon(ctx, id)
		log.Warn().Err(err).Str("module", "app.orch").Uint32("sid", uint32(id)).Msg("negotiation failed")
		if errors.Is(err, domain.ErrInvalidOffer) || errors.Is(err, domain.ErrNegotiation) {
			return domain.Answer{}, err
		}
		return domain.Answer{}, fmt.Errorf("%w: %w", domain.ErrNegotiation, err)
	}
	if err := ctx.Err(); err != nil {
		if cerr := handle.Close(); cerr != nil {
			log.Error().Err(cerr).Str("module", "app.orch").Uint32("sid", uint32(id)).Msg("close abandoned handle")
		}
		c.abandon(ctx, id)
		return domain.Answer{}, err
	}

	// Registration must reach the loop even if the caller has given up:
	// once enqueued, the loop owns the handle.
	regErr, err := call(context.WithoutCancel(ctx), c, func(reply chan error) message {
		return registerSession{id: id, handle: handle, reply: reply}
	})
	if err != nil {
		if errors.Is(err, domain.ErrCoordinatorStopped) {
			_ = handle.Close()
		}
		return domain.Answer{}, err
	}
	if regErr != nil {
		return domain.Answer{}, regErr
	}
	return domain.Answer{SDP: answer, ID: id}, nil
}

func (c *Coordinator) abandon(ctx context.Context, id domain.SessionID) {
	_ = c.send(context.WithoutCancel(ctx), abandonSession{id: id})
}

// Teardown closes and forgets id. Absent ids are fine.
func (c *Coordinator) Teardown(ctx context.Context, id domain.SessionID) error {
	_, err := call(ctx, c, func(reply chan struct{}) message {
		return teardownSession{id: id, reason: "explicit", reply: reply}
	})
	return err
}

// Cleanup tears down every session. Close failures are joined, never
// short-circuit the rest.
func (c *Coordinator) Cleanup(ctx context.Context) error {
	closeErr, err := call(ctx, c, func(reply chan error) message {
		return cleanupAll{reply: reply}
	})
	if err != nil {
		return err
	}
	return closeErr
}

func (c *Coordinator) Snapshot(ctx context.Context) ([]domain.SessionInfo, error) {
	return call(ctx, c, func(reply chan []domain.SessionInfo) message {
		return snapshotSessions{reply: reply}
	})
}

func (c *Coordinator) eventsFor(id domain.SessionID) core.PeerEvents {
	return core.PeerEvents{
		OnLocalCandidate: func(cand domain.Candidate) { c.LocalCandidateDiscovered(id, cand) },
		OnStateChange:    func(s core.EngineState) { c.PeerStateChanged(id, s) },
		OnChannelOpen:    func(label string) { c.post(channelOpened{id: id, label: label}) },
		OnChannelMessage: func(p []byte) { c.post(channelMessage{id: id, size: len(p)}) },
	}
}

func (c *Coordinator) handleReserve(m reserveSession) {
	if m.replaces != domain.NoSession {
		if _, ok := c.registry.Get(m.replaces); ok {
			log.Info().Str("module", "app.orch").Uint32("sid", uint32(m.replaces)).Msg("replacing session on new offer")
			c.teardown(m.replaces, "replaced")
		}
	}
	id, err := c.ids.Allocate()
	if err != nil {
		c.metrics.IDExhaustion.Inc()
		log.Error().Err(err).Str("module", "app.orch").Bool("capacity_alarm", true).
			Int("live", c.registry.Len()).Int("pending", c.registry.PendingLen()).Msg("session id allocation failed")
		m.reply <- reserveResult{err: err}
		return
	}
	c.registry.Reserve(id)
	m.reply <- reserveResult{id: id}
}

func (c *Coordinator) handleRegister(m registerSession) {
	if !c.registry.IsPending(m.id) {
		// Released by a teardown or cleanup while negotiating.
		if err := m.handle.Close(); err != nil {
			log.Error().Err(err).Str("module", "app.orch").Uint32("sid", uint32(m.id)).Msg("close released handle")
		}
		c.buffer.Discard(m.id)
		m.reply <- fmt.Errorf("%w: reservation %s released during negotiation", domain.ErrUnknownSession, m.id)
		return
	}

	sess := app.NewPeerSession(m.id, m.handle)
	last, reported := c.registry.Bind(sess)
	if reported && last.Terminal() {
		log.Warn().Str("module", "app.orch").Uint32("sid", uint32(m.id)).Str("engine_state", last.String()).
			Msg("peer failed before registration")
		c.teardown(m.id, "failed")
		m.reply <- fmt.Errorf("%w: peer reported %s before registration", domain.ErrNegotiation, last)
		return
	}
	if reported {
		sess.Apply(last)
	}
	c.metrics.SessionsCreated.Inc()
	log.Info().Str("module", "app.orch").Uint32("sid", uint32(m.id)).
		Int("buffered_local", c.buffer.Len(m.id)).Msg("session registered")
	m.reply <- nil
}

func (c *Coordinator) handleAbandon(m abandonSession) {
	c.registry.Release(m.id)
	c.buffer.Discard(m.id)
	log.Debug().Str("module", "app.orch").Uint32("sid", uint32(m.id)).Msg("reservation abandoned")
}

func (c *Coordinator) handleTeardown(m teardownSession) {
	c.teardown(m.id, m.reason)
	if m.reply != nil {
		m.reply <- struct{}{}
	}
}

// teardown releases the engine handle and removes every trace of id. A
// pending reservation is released, which makes its registration fail.
func (c *Coordinator) teardown(id domain.SessionID, reason string) error {
	c.buffer.Discard(id)
	if c.registry.IsPending(id) {
		c.registry.Release(id)
		log.Info().Str("module", "app.orch").Uint32("sid", uint32(id)).Str("reason", reason).Msg("reservation released")
		return nil
	}
	sess, ok := c.registry.Get(id)
	if !ok {
		return nil
	}
	err := sess.Close()
	c.registry.Unbind(id)
	c.metrics.SessionsTornDown.WithLabelValues(reason).Inc()
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("module", "app.orch").Uint32("sid", uint32(id)).Str("reason", reason).Msg("session torn down")
	if err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	return nil
}

func (c *Coordinator) cleanup(reason string) error {
	var errs []error
	for _, id := range c.registry.IDs() {
		if err := c.teardown(id, reason); err != nil {
			errs = append(errs, err)
		}
	}
	log.Info().Str("module", "app.orch").Int("failed", len(errs)).Msg("all sessions cleaned up")
	return errors.Join(errs...)
}

func (c *Coordinator) handleSnapshot(m snapshotSessions) {
	sessions := c.registry.Sessions()
	out := make([]domain.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info(c.buffer.Len(s.ID)))
	}
	m.reply <- out
}

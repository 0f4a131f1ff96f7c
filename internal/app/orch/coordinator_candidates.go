package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

// AddRemoteCandidate hands a browser candidate to the session's engine.
// Engine failures are returned as is, never retried.
func (c *Coordinator) AddRemoteCandidate(ctx context.Context, id domain.SessionID, cand domain.Candidate) error {
	res, err := call(ctx, c, func(reply chan error) message {
		return addRemoteCandidate{id: id, cand: cand, reply: reply}
	})
	if err != nil {
		return err
	}
	return res
}

// DrainLocalCandidates returns and forgets everything gathered for id so far.
func (c *Coordinator) DrainLocalCandidates(ctx context.Context, id domain.SessionID) ([]domain.Candidate, bool, error) {
	res, err := call(ctx, c, func(reply chan drainResult) message {
		return drainLocalCandidates{id: id, reply: reply}
	})
	if err != nil {
		return nil, false, err
	}
	return res.cands, res.live, nil
}

// LocalCandidateDiscovered queues an engine-gathered candidate. Safe to call
// from any goroutine.
func (c *Coordinator) LocalCandidateDiscovered(id domain.SessionID, cand domain.Candidate) {
	c.post(localCandidateDiscovered{id: id, cand: cand})
}

// PeerStateChanged queues an engine state report. Safe to call from any
// goroutine.
func (c *Coordinator) PeerStateChanged(id domain.SessionID, s core.EngineState) {
	c.post(peerStateChanged{id: id, state: s})
}

func (c *Coordinator) handleAddRemoteCandidate(m addRemoteCandidate) {
	sess, ok := c.registry.Get(m.id)
	if !ok {
		m.reply <- fmt.Errorf("%w: %s", domain.ErrUnknownSession, m.id)
		return
	}
	if err := sess.Handle().AddRemoteCandidate(m.cand); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Uint32("sid", uint32(m.id)).Msg("add remote candidate")
		m.reply <- fmt.Errorf("add remote candidate to %s: %w", m.id, err)
		return
	}
	log.Debug().Str("module", "app.orch").Uint32("sid", uint32(m.id)).Str("candidate", m.cand.SDP).Msg("remote candidate added")
	m.reply <- nil
}

func (c *Coordinator) handleDrain(m drainLocalCandidates) {
	_, live := c.registry.Get(m.id)
	m.reply <- drainResult{cands: c.buffer.DrainAll(m.id), live: live}
}

func (c *Coordinator) handleLocalCandidate(m localCandidateDiscovered) {
	// Pending ids are accepted: gathering starts before registration.
	if !c.registry.Contains(m.id) {
		log.Debug().Str("module", "app.orch").Uint32("sid", uint32(m.id)).Msg("local candidate for gone session dropped")
		return
	}
	c.buffer.Append(m.id, m.cand)
	c.metrics.LocalCandidates.Inc()
	log.Debug().Str("module", "app.orch").Uint32("sid", uint32(m.id)).
		Bool("end_of_candidates", m.cand.IsEndOfCandidates()).Msg("local candidate buffered")
}

func (c *Coordinator) handlePeerState(m peerStateChanged) {
	if c.registry.RecordPendingState(m.id, m.state) {
		return
	}
	sess, ok := c.registry.Get(m.id)
	if !ok {
		return
	}
	prev := sess.State()
	teardown := sess.Apply(m.state)
	log.Info().Str("module", "app.orch").Uint32("sid", uint32(m.id)).
		Str("engine_state", m.state.String()).Str("from", prev.String()).Str("to", sess.State().String()).
		Msg("peer state")
	if teardown {
		reason := "disconnected"
		switch m.state {
		case core.EngineStateFailed:
			reason = "failed"
		case core.EngineStateClosed:
			reason = "closed"
		}
		c.followUps = append(c.followUps, teardownSession{id: m.id, reason: reason})
	}
}

func (c *Coordinator) handleChannelOpened(m channelOpened) {
	sess, ok := c.registry.Get(m.id)
	if !ok {
		return
	}
	sess.ChannelOpened(m.label)
	log.Info().Str("module", "app.orch").Uint32("sid", uint32(m.id)).Str("label", m.label).Msg("data channel open")
}

func (c *Coordinator) handleChannelMessage(m channelMessage) {
	sess, ok := c.registry.Get(m.id)
	if !ok {
		return
	}
	sess.MessageReceived()
	log.Debug().Str("module", "app.orch").Uint32("sid", uint32(m.id)).Int("bytes", m.size).Msg("data channel message")
}

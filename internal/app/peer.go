package app

import (
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

// PeerSession wraps one negotiated connection and its lifecycle. Mutated
// only from the coordinator loop.
type PeerSession struct {
	ID        domain.SessionID
	CreatedAt time.Time

	handle   core.PeerHandle
	state    domain.LifecycleState
	channel  string
	received uint64
}

func NewPeerSession(id domain.SessionID, handle core.PeerHandle) *PeerSession {
	return &PeerSession{
		ID:        id,
		CreatedAt: time.Now(),
		handle:    handle,
		state:     domain.StateNegotiating,
	}
}

func (p *PeerSession) State() domain.LifecycleState { return p.state }
func (p *PeerSession) Handle() core.PeerHandle       { return p.handle }

// Apply advances the lifecycle for an engine report. It returns true when
// the report requires the session to be torn down; the caller does that.
func (p *PeerSession) Apply(reported core.EngineState) (teardown bool) {
	switch p.state {
	case domain.StateDisconnecting, domain.StateClosed:
		return false
	}
	switch {
	case reported == core.EngineStateConnected:
		p.state = domain.StateConnected
	case reported.Terminal():
		p.state = domain.StateDisconnecting
		return true
	}
	return false
}

// Close releases the engine handle. Calling it again is a no-op.
func (p *PeerSession) Close() error {
	if p.state == domain.StateClosed {
		return nil
	}
	p.state = domain.StateDisconnecting
	var err error
	if p.handle != nil {
		err = p.handle.Close()
		p.handle = nil
	}
	p.state = domain.StateClosed
	return err
}

func (p *PeerSession) ChannelOpened(label string) { p.channel = label }
func (p *PeerSession) MessageReceived()           { p.received++ }

func (p *PeerSession) Info(buffered int) domain.SessionInfo {
	return domain.SessionInfo{
		ID:               p.ID,
		State:            p.state,
		Channel:          p.channel,
		BufferedLocal:    buffered,
		MessagesReceived: p.received,
		CreatedAt:        p.CreatedAt,
	}
}

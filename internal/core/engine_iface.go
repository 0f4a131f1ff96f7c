package core

import (
	"context"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// EngineState is the transport state reported by the peer-connection engine.
type EngineState int

const (
	EngineStateNew EngineState = iota
	EngineStateConnecting
	EngineStateConnected
	EngineStateDisconnected
	EngineStateFailed
	EngineStateClosed
)

func (s EngineState) String() string {
	switch s {
	case EngineStateNew:
		return "new"
	case EngineStateConnecting:
		return "connecting"
	case EngineStateConnected:
		return "connected"
	case EngineStateDisconnected:
		return "disconnected"
	case EngineStateFailed:
		return "failed"
	case EngineStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session should be torn down.
func (s EngineState) Terminal() bool {
	return s == EngineStateDisconnected || s == EngineStateFailed || s == EngineStateClosed
}

// PeerEvents are the engine's asynchronous notifications. They are invoked
// from engine goroutines and must not block for long.
type PeerEvents struct {
	// OnLocalCandidate is called for every gathered candidate, and once with
	// domain.EndOfCandidates() when gathering completes.
	OnLocalCandidate func(domain.Candidate)
	OnStateChange    func(EngineState)
	OnChannelOpen    func(label string)
	OnChannelMessage func(payload []byte)
}

// PeerEngine negotiates answers for remote offers.
type PeerEngine interface {
	// Negotiate applies offerSDP and returns the local answer. On error no
	// handle is returned and nothing is left running.
	Negotiate(ctx context.Context, offerSDP string, events PeerEvents) (PeerHandle, string, error)
}

// PeerHandle is one negotiated connection. Owned by exactly one session.
type PeerHandle interface {
	AddRemoteCandidate(domain.Candidate) error
	// Close releases all engine resources. No event is delivered once Close
	// has started; one already in flight may still arrive after it returns.
	Close() error
}

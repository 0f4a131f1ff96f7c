package orch

import (
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

// message is anything the coordinator loop accepts. Messages carrying a
// reply channel get exactly one value on it; channels are buffered so the
// loop never blocks on a caller that went away.
type message interface {
	kind() string
}

type reserveResult struct {
	id  domain.SessionID
	err error
}

type drainResult struct {
	cands []domain.Candidate
	live  bool
}

type (
	reserveSession struct {
		replaces domain.SessionID
		reply    chan reserveResult
	}
	registerSession struct {
		id     domain.SessionID
		handle core.PeerHandle
		reply  chan error
	}
	abandonSession struct {
		id domain.SessionID
	}
	addRemoteCandidate struct {
		id    domain.SessionID
		cand  domain.Candidate
		reply chan error
	}
	drainLocalCandidates struct {
		id    domain.SessionID
		reply chan drainResult
	}
	localCandidateDiscovered struct {
		id   domain.SessionID
		cand domain.Candidate
	}
	peerStateChanged struct {
		id    domain.SessionID
		state core.EngineState
	}
	channelOpened struct {
		id    domain.SessionID
		label string
	}
	channelMessage struct {
		id   domain.SessionID
		size int
	}
	teardownSession struct {
		id     domain.SessionID
		reason string
		reply  chan struct{} // nil when synthesized by the loop
	}
	cleanupAll struct {
		reply chan error
	}
	snapshotSessions struct {
		reply chan []domain.SessionInfo
	}
)

func (reserveSession) kind() string           { return "reserve" }
func (registerSession) kind() string          { return "register" }
func (abandonSession) kind() string           { return "abandon" }
func (addRemoteCandidate) kind() string       { return "add_remote_candidate" }
func (drainLocalCandidates) kind() string     { return "drain_local_candidates" }
func (localCandidateDiscovered) kind() string { return "local_candidate" }
func (peerStateChanged) kind() string         { return "peer_state" }
func (channelOpened) kind() string            { return "channel_open" }
func (channelMessage) kind() string           { return "channel_message" }
func (teardownSession) kind() string          { return "teardown" }
func (cleanupAll) kind() string               { return "cleanup" }
func (snapshotSessions) kind() string         { return "snapshot" }

package domain

import (
	"strconv"
	"time"
)

// SessionID identifies one live peer session. Zero is never allocated and
// stands for "no session".
type SessionID uint32

const NoSession SessionID = 0

func (id SessionID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseSessionID accepts the decimal form produced by String.
func ParseSessionID(s string) (SessionID, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return NoSession, false
	}
	return SessionID(v), true
}

type LifecycleState int

const (
	StateNegotiating LifecycleState = iota
	StateConnected
	StateDisconnecting
	StateClosed
)

func (s LifecycleState) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s LifecycleState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Answer is what a successful negotiation hands back to the client.
type Answer struct {
	SDP string
	ID  SessionID
}

// SessionInfo is a read-only view of a live session (no engine fields).
type SessionInfo struct {
	ID               SessionID      `json:"id"`
	State            LifecycleState `json:"state"`
	Channel          string         `json:"channel,omitempty"`
	BufferedLocal    int            `json:"buffered_local_candidates"`
	MessagesReceived uint64         `json:"messages_received"`
	CreatedAt        time.Time      `json:"created_at"`
}

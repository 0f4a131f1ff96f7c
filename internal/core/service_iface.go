package core

import (
	"context"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// SessionService is what the transports (HTTP, WebSocket) see of the
// coordinator. Every call either returns a result or an error; none hangs
// past ctx.
type SessionService interface {
	// CreateSession negotiates offerSDP into a new session. A live session
	// named by replaces is torn down first.
	CreateSession(ctx context.Context, offerSDP string, replaces domain.SessionID) (domain.Answer, error)
	AddRemoteCandidate(ctx context.Context, id domain.SessionID, c domain.Candidate) error
	// DrainLocalCandidates never fails for unknown ids; live reports whether
	// id named a live session.
	DrainLocalCandidates(ctx context.Context, id domain.SessionID) (cands []domain.Candidate, live bool, err error)
	Teardown(ctx context.Context, id domain.SessionID) error
	Snapshot(ctx context.Context) ([]domain.SessionInfo, error)
}

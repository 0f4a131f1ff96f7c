package app

import (
	"sort"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

// pendingEntry is an id reserved for a negotiation still in flight.
type pendingEntry struct {
	lastState core.EngineState
	reported  bool
}

// Registry is the live-session map. It also tracks reserved ids whose
// negotiation has not finished, so the allocator never hands them out twice.
// Owned by the coordinator loop; no locking.
type Registry struct {
	sessions map[domain.SessionID]*PeerSession
	pending  map[domain.SessionID]*pendingEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*PeerSession),
		pending:  make(map[domain.SessionID]*pendingEntry),
	}
}

func (r *Registry) Contains(id domain.SessionID) bool {
	if _, ok := r.sessions[id]; ok {
		return true
	}
	_, ok := r.pending[id]
	return ok
}

func (r *Registry) Reserve(id domain.SessionID) {
	r.pending[id] = &pendingEntry{}
	log.Debug().Str("module", "app.registry").Uint32("sid", uint32(id)).Msg("reserved id")
}

func (r *Registry) IsPending(id domain.SessionID) bool {
	_, ok := r.pending[id]
	return ok
}

// RecordPendingState remembers the latest engine report for a reserved id.
func (r *Registry) RecordPendingState(id domain.SessionID, s core.EngineState) bool {
	e, ok := r.pending[id]
	if !ok {
		return false
	}
	e.lastState, e.reported = s, true
	return true
}

// Release drops a reservation without binding it.
func (r *Registry) Release(id domain.SessionID) {
	delete(r.pending, id)
}

// Bind promotes a reservation to a live session. It returns the last state
// the engine reported while pending, if any.
func (r *Registry) Bind(sess *PeerSession) (core.EngineState, bool) {
	e, ok := r.pending[sess.ID]
	delete(r.pending, sess.ID)
	r.sessions[sess.ID] = sess
	log.Info().Str("module", "app.registry").Uint32("sid", uint32(sess.ID)).Msg("bound session")
	if !ok {
		return core.EngineStateNew, false
	}
	return e.lastState, e.reported
}

func (r *Registry) Get(id domain.SessionID) (*PeerSession, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Unbind(id domain.SessionID) {
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Uint32("sid", uint32(id)).Msg("unbind session")
}

func (r *Registry) Len() int        { return len(r.sessions) }
func (r *Registry) PendingLen() int { return len(r.pending) }

// IDs returns live and pending ids in ascending order.
func (r *Registry) IDs() []domain.SessionID {
	out := make([]domain.SessionID, 0, len(r.sessions)+len(r.pending))
	for id := range r.sessions {
		out = append(out, id)
	}
	for id := range r.pending {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sessions returns the live sessions ordered by id.
func (r *Registry) Sessions() []*PeerSession {
	out := make([]*PeerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

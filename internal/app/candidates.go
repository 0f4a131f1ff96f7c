package app

import "github.com/dkeye/Rendezvous/internal/domain"

// CandidateBuffer queues locally gathered candidates per session until the
// remote peer fetches them. Not safe for concurrent use; the coordinator
// loop is its only user.
type CandidateBuffer struct {
	queued map[domain.SessionID][]domain.Candidate
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{queued: make(map[domain.SessionID][]domain.Candidate)}
}

// Append never rejects: candidates may arrive before their session is
// registered.
func (b *CandidateBuffer) Append(id domain.SessionID, c domain.Candidate) {
	b.queued[id] = append(b.queued[id], c)
}

// DrainAll removes and returns everything queued for id, in arrival order.
func (b *CandidateBuffer) DrainAll(id domain.SessionID) []domain.Candidate {
	out, ok := b.queued[id]
	if !ok {
		return []domain.Candidate{}
	}
	delete(b.queued, id)
	return out
}

func (b *CandidateBuffer) Discard(id domain.SessionID) {
	delete(b.queued, id)
}

func (b *CandidateBuffer) Len(id domain.SessionID) int { return len(b.queued[id]) }

// Sessions reports how many ids currently hold a queue.
func (b *CandidateBuffer) Sessions() int { return len(b.queued) }

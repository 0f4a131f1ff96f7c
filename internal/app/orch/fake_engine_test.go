package orch

import (
	"context"
	"sync"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

type fakeHandle struct {
	mu       sync.Mutex
	remote   []domain.Candidate
	addErr   error
	closeErr error
	closed   int
}

func (h *fakeHandle) AddRemoteCandidate(c domain.Candidate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.addErr != nil {
		return h.addErr
	}
	h.remote = append(h.remote, c)
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return h.closeErr
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) remoteCandidates() []domain.Candidate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Candidate(nil), h.remote...)
}

// fakeEngine answers every offer with "answer:<offer>". duringNegotiate runs
// with the session's events before the result is returned, to emulate the
// engine gathering while the answer is still being built.
type fakeEngine struct {
	mu              sync.Mutex
	err             error
	closeErrs       []error
	duringNegotiate func(core.PeerEvents)
	handles         []*fakeHandle
	events          []core.PeerEvents
}

func (e *fakeEngine) Negotiate(_ context.Context, offer string, events core.PeerEvents) (core.PeerHandle, string, error) {
	e.mu.Lock()
	hook := e.duringNegotiate
	negErr := e.err
	h := &fakeHandle{}
	if n := len(e.handles); n < len(e.closeErrs) {
		h.closeErr = e.closeErrs[n]
	}
	e.mu.Unlock()

	if hook != nil {
		hook(events)
	}
	if negErr != nil {
		_ = h.Close()
		return nil, "", negErr
	}

	e.mu.Lock()
	e.handles = append(e.handles, h)
	e.events = append(e.events, events)
	e.mu.Unlock()
	return h, "answer:" + offer, nil
}

func (e *fakeEngine) handle(i int) *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[i]
}

func (e *fakeEngine) eventsOf(i int) core.PeerEvents {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events[i]
}

// sequence returns an IDSource yielding ids in order, then repeating the last.
func sequence(ids ...uint32) func() uint32 {
	var mu sync.Mutex
	i := 0
	return func() uint32 {
		mu.Lock()
		defer mu.Unlock()
		v := ids[i]
		if i < len(ids)-1 {
			i++
		}
		return v
	}
}

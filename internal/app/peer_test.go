package app

import (
	"errors"
	"testing"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

type countingHandle struct {
	closes int
	err    error
}

func (h *countingHandle) AddRemoteCandidate(domain.Candidate) error { return nil }
func (h *countingHandle) Close() error {
	h.closes++
	return h.err
}

func TestPeerSession_Transitions(t *testing.T) {
	p := NewPeerSession(3, &countingHandle{})
	if p.State() != domain.StateNegotiating {
		t.Fatalf("initial state = %s", p.State())
	}
	if p.Apply(core.EngineStateConnecting) {
		t.Fatalf("connecting must not tear down")
	}
	if p.Apply(core.EngineStateConnected) || p.State() != domain.StateConnected {
		t.Fatalf("state = %s, want connected", p.State())
	}
	if !p.Apply(core.EngineStateDisconnected) || p.State() != domain.StateDisconnecting {
		t.Fatalf("state = %s, want disconnecting", p.State())
	}
	if p.Apply(core.EngineStateFailed) {
		t.Fatalf("second terminal report must not ask for another teardown")
	}
	p.Apply(core.EngineStateConnected)
	if p.State() != domain.StateDisconnecting {
		t.Fatalf("disconnecting session revived to %s", p.State())
	}
}

func TestPeerSession_CloseOnce(t *testing.T) {
	h := &countingHandle{err: errors.New("boom")}
	p := NewPeerSession(3, h)
	if err := p.Close(); err == nil {
		t.Fatalf("close error swallowed")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if h.closes != 1 || p.State() != domain.StateClosed || p.Handle() != nil {
		t.Fatalf("closes=%d state=%s", h.closes, p.State())
	}
}

func TestPeerSession_Info(t *testing.T) {
	p := NewPeerSession(8, &countingHandle{})
	p.ChannelOpened("data")
	p.MessageReceived()
	info := p.Info(2)
	if info.ID != 8 || info.Channel != "data" || info.MessagesReceived != 1 || info.BufferedLocal != 2 {
		t.Fatalf("info = %+v", info)
	}
}

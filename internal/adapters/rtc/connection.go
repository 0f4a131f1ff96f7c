package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrConnectionClosed = errors.New("peer connection closed")

// WebRTCConnection is the engine handle for one session. Once Close starts,
// no further events reach the coordinator.
type WebRTCConnection struct {
	pc       *webrtc.PeerConnection
	events   core.PeerEvents
	greeting string

	mu      sync.Mutex
	channel *webrtc.DataChannel

	closed atomic.Bool
}

var _ core.PeerHandle = (*WebRTCConnection)(nil)

func newWebRTCConnection(pc *webrtc.PeerConnection, events core.PeerEvents, greeting string) *WebRTCConnection {
	return &WebRTCConnection{pc: pc, events: events, greeting: greeting}
}

// start wires the pion callbacks. It must run before the local description
// is set, since that starts gathering.
func (c *WebRTCConnection) start() {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if c.closed.Load() || c.events.OnLocalCandidate == nil {
			return
		}
		if cand == nil {
			c.events.OnLocalCandidate(domain.EndOfCandidates())
			return
		}
		init := cand.ToJSON()
		c.events.OnLocalCandidate(domain.Candidate{
			SDP:           init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "webrtc").Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if c.closed.Load() || c.events.OnStateChange == nil {
			return
		}
		state, ok := engineState(s)
		if !ok {
			return
		}
		c.events.OnStateChange(state)
	})

	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		c.mu.Lock()
		if c.channel != nil {
			c.mu.Unlock()
			log.Warn().Str("module", "webrtc").Str("label", dc.Label()).Msg("extra data channel refused")
			_ = dc.Close()
			return
		}
		c.channel = dc
		c.mu.Unlock()

		dc.OnOpen(func() {
			if c.closed.Load() {
				return
			}
			if c.events.OnChannelOpen != nil {
				c.events.OnChannelOpen(dc.Label())
			}
			if c.greeting != "" {
				if err := dc.SendText(c.greeting); err != nil {
					log.Warn().Err(err).Str("module", "webrtc").Str("label", dc.Label()).Msg("send greeting")
				}
			}
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			if c.closed.Load() || c.events.OnChannelMessage == nil {
				return
			}
			// pion reuses its read buffer.
			c.events.OnChannelMessage(append([]byte(nil), msg.Data...))
		})
	})
}

func engineState(s webrtc.PeerConnectionState) (core.EngineState, bool) {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return core.EngineStateNew, true
	case webrtc.PeerConnectionStateConnecting:
		return core.EngineStateConnecting, true
	case webrtc.PeerConnectionStateConnected:
		return core.EngineStateConnected, true
	case webrtc.PeerConnectionStateDisconnected:
		return core.EngineStateDisconnected, true
	case webrtc.PeerConnectionStateFailed:
		return core.EngineStateFailed, true
	case webrtc.PeerConnectionStateClosed:
		return core.EngineStateClosed, true
	default:
		return 0, false
	}
}

// applyOffer sets the remote offer and the local answer. Candidates trickle
// through OnLocalCandidate afterwards; the answer is returned right away.
func (c *WebRTCConnection) applyOffer(ctx context.Context, sdp string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidOffer, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("%w: create answer: %w", domain.ErrNegotiation, err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("%w: set local description: %w", domain.ErrNegotiation, err)
	}
	return answer.SDP, nil
}

func (c *WebRTCConnection) AddRemoteCandidate(cand domain.Candidate) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     cand.SDP,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	})
}

func (c *WebRTCConnection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "webrtc").Msg("close error")
		return err
	}
	log.Debug().Str("module", "webrtc").Msg("closed")
	return nil
}

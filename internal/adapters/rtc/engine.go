package rtc

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type EngineConfig struct {
	ICEServers []webrtc.ICEServer
	// Both zero lets the OS pick ports.
	UDPPortMin uint16
	UDPPortMax uint16
	// Greeting is sent on the data channel once it opens; empty disables.
	Greeting string
	// A zero field falls back to the matching Default* value.
	DisconnectedTimeout time.Duration
	FailedTimeout       time.Duration
	KeepAliveInterval   time.Duration
}

// pion's own ICE timer defaults. SettingEngine stores whatever it is given,
// and a stored zero disables the timer.
const (
	DefaultDisconnectedTimeout = 5 * time.Second
	DefaultFailedTimeout       = 25 * time.Second
	DefaultKeepAliveInterval   = 2 * time.Second
)

// iceTimeouts resolves the disconnected, failed and keepalive timers,
// replacing each unset one with its default.
func iceTimeouts(cfg EngineConfig) (disconnected, failed, keepAlive time.Duration) {
	disconnected, failed, keepAlive = cfg.DisconnectedTimeout, cfg.FailedTimeout, cfg.KeepAliveInterval
	if disconnected <= 0 {
		disconnected = DefaultDisconnectedTimeout
	}
	if failed <= 0 {
		failed = DefaultFailedTimeout
	}
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAliveInterval
	}
	return disconnected, failed, keepAlive
}

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// Engine is the pion-backed core.PeerEngine.
type Engine struct {
	api      *webrtc.API
	pcConfig webrtc.Configuration
	greeting string
}

var _ core.PeerEngine = (*Engine)(nil)

func NewEngine(cfg EngineConfig) (*Engine, error) {
	se := webrtc.SettingEngine{LoggerFactory: NewLoggerFactory()}
	if cfg.UDPPortMin != 0 || cfg.UDPPortMax != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.UDPPortMin, cfg.UDPPortMax); err != nil {
			return nil, fmt.Errorf("udp port range: %w", err)
		}
	}
	disconnected, failed, keepAlive := iceTimeouts(cfg)
	se.SetICETimeouts(disconnected, failed, keepAlive)

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	servers := cfg.ICEServers
	if servers == nil {
		servers = DefaultICEServers()
	}
	log.Info().Str("module", "webrtc").Int("ice_servers", len(servers)).
		Uint16("udp_port_min", cfg.UDPPortMin).Uint16("udp_port_max", cfg.UDPPortMax).
		Dur("disconnected_timeout", disconnected).Dur("failed_timeout", failed).Dur("keepalive_interval", keepAlive).
		Msg("engine ready")

	return &Engine{
		api: webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se)),
		pcConfig: webrtc.Configuration{
			ICEServers:         servers,
			ICETransportPolicy: webrtc.ICETransportPolicyAll,
			BundlePolicy:       webrtc.BundlePolicyBalanced,
			RTCPMuxPolicy:      webrtc.RTCPMuxPolicyRequire,
		},
		greeting: cfg.Greeting,
	}, nil
}

func (e *Engine) Negotiate(ctx context.Context, offerSDP string, events core.PeerEvents) (core.PeerHandle, string, error) {
	pc, err := e.api.NewPeerConnection(e.pcConfig)
	if err != nil {
		return nil, "", fmt.Errorf("new peer connection: %w", err)
	}
	conn := newWebRTCConnection(pc, events, e.greeting)
	conn.start()

	answer, err := conn.applyOffer(ctx, offerSDP)
	if err != nil {
		_ = conn.Close()
		return nil, "", err
	}
	return conn, answer, nil
}

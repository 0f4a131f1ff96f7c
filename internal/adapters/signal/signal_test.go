package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const testOffer = "v=0\r\n" +
	"o=- 4215 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n"

type stubHandle struct {
	mu     sync.Mutex
	closed bool
}

func (h *stubHandle) AddRemoteCandidate(domain.Candidate) error { return nil }
func (h *stubHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

type stubEngine struct {
	mu      sync.Mutex
	events  core.PeerEvents
	handles []*stubHandle
}

func (e *stubEngine) Negotiate(_ context.Context, _ string, ev core.PeerEvents) (core.PeerHandle, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := &stubHandle{}
	e.events = ev
	e.handles = append(e.handles, h)
	return h, "v=0 answer", nil
}

func (e *stubEngine) last() core.PeerEvents {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events
}

func dial(t *testing.T) (*websocket.Conn, *orch.Coordinator, *stubEngine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := &stubEngine{}
	coord := orch.New(engine, nil, orch.Options{IDSource: func() uint32 { return 42 }})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = coord.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-coord.Done()
	})

	ctl := NewSignalWSController(coord, Options{RequestTimeout: 2 * time.Second})
	r := gin.New()
	r.GET("/ws/signal", ctl.HandleSignal)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, coord, engine
}

func roundTrip(t *testing.T, conn *websocket.Conn, req any) map[string]any {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var resp map[string]any
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp
}

func TestSignal_PingAndUnknown(t *testing.T) {
	conn, _, _ := dial(t)

	if resp := roundTrip(t, conn, map[string]string{"type": "ping"}); resp["type"] != "pong" {
		t.Fatalf("ping = %v", resp)
	}
	if resp := roundTrip(t, conn, map[string]string{"type": "dance"}); resp["error"] != "unknown_type" {
		t.Fatalf("unknown = %v", resp)
	}
}

func TestSignal_CandidateBeforeOffer(t *testing.T) {
	conn, _, _ := dial(t)
	resp := roundTrip(t, conn, map[string]string{"type": "candidate", "candidate": ""})
	if resp["type"] != "error" || resp["error"] != "no_session" {
		t.Fatalf("resp = %v", resp)
	}
}

func TestSignal_FullExchange(t *testing.T) {
	conn, coord, engine := dial(t)

	resp := roundTrip(t, conn, map[string]string{"type": "offer", "sdp": testOffer})
	if resp["type"] != "answer" || resp["sdp"] != "v=0 answer" || resp["id"] != float64(42) {
		t.Fatalf("answer = %v", resp)
	}

	engine.last().OnLocalCandidate(domain.Candidate{SDP: "candidate:1 1 udp 1 10.0.0.1 5000 typ host"})

	resp = roundTrip(t, conn, map[string]any{
		"type":            "candidate",
		"candidate":       "candidate:1 1 udp 2130706431 192.168.1.2 54321 typ host",
		"sdp_mline_index": 0,
	})
	if resp["type"] != "ok" {
		t.Fatalf("candidate = %v", resp)
	}

	resp = roundTrip(t, conn, map[string]string{"type": "poll"})
	cands, _ := resp["candidates"].([]any)
	if resp["type"] != "candidates" || len(cands) != 1 {
		t.Fatalf("poll = %v", resp)
	}

	if resp := roundTrip(t, conn, map[string]string{"type": "bye"}); resp["type"] != "left" {
		t.Fatalf("bye = %v", resp)
	}
	infos, err := coord.Snapshot(context.Background())
	if err != nil || len(infos) != 0 {
		t.Fatalf("after bye: %+v err=%v", infos, err)
	}
}

func TestSignal_CloseTearsDownSession(t *testing.T) {
	conn, coord, engine := dial(t)

	if resp := roundTrip(t, conn, map[string]string{"type": "offer", "sdp": testOffer}); resp["type"] != "answer" {
		t.Fatalf("answer = %v", resp)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		infos, err := coord.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if len(infos) == 0 {
			engine.mu.Lock()
			h := engine.handles[0]
			engine.mu.Unlock()
			h.mu.Lock()
			closed := h.closed
			h.mu.Unlock()
			if !closed {
				t.Fatalf("handle not closed on socket close")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session outlived its socket")
}

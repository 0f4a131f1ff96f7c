package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	cfg, err := Load([]string{"--config", missing, "--mode", "debug"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Cookie.Name != "RendezvousSession" || cfg.WebRTC.Greeting != "hello" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.OfferRate.Limit != 10 || cfg.OfferRate.Interval != time.Minute {
		t.Fatalf("offer rate = %+v", cfg.OfferRate)
	}
	if len(cfg.WebRTC.ICEServers) != 1 || cfg.WebRTC.ICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("ice servers = %+v", cfg.WebRTC.ICEServers)
	}
	if string(cfg.CookieSecret()) != DevSecret {
		t.Fatalf("cookie secret = %q", cfg.CookieSecret())
	}
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
mode: release
port: 9000
secret: s3cret
request_timeout: 3s
offer_rate:
  limit: 2
  interval: 30s
webrtc:
  udp_port_min: 50000
  udp_port_max: 50100
  failed_timeout: 10s
  keepalive_interval: 1s
  ice_servers:
    - urls: ["turn:turn.example.org:3478"]
      username: u
      credential: p
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"--config", path, "--port", "9100"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("port = %d, flag must win over file", cfg.Port)
	}
	if cfg.Mode != "release" || cfg.RequestTimeout != 3*time.Second || cfg.OfferRate.Interval != 30*time.Second {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.WebRTC.FailedTimeout != 10*time.Second || cfg.WebRTC.KeepAliveInterval != time.Second || cfg.WebRTC.DisconnectedTimeout != 0 {
		t.Fatalf("ice timers = %s %s %s", cfg.WebRTC.DisconnectedTimeout, cfg.WebRTC.FailedTimeout, cfg.WebRTC.KeepAliveInterval)
	}
	if cfg.WebRTC.UDPPortMin != 50000 || cfg.WebRTC.ICEServers[0].Credential != "p" {
		t.Fatalf("webrtc = %+v", cfg.WebRTC)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("RENDEZVOUS_WEBRTC_GREETING", "hi from env")
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	cfg, err := Load([]string{"--config", missing, "--mode", "debug"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WebRTC.Greeting != "hi from env" {
		t.Fatalf("greeting = %q", cfg.WebRTC.Greeting)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{Mode: "release", Port: 0}
	cfg.WebRTC.UDPPortMin, cfg.WebRTC.UDPPortMax = 100, 50
	cfg.OfferRate.Limit = -1
	cfg.WebRTC.KeepAliveInterval = -time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("invalid config accepted")
	}
	for _, want := range []string{"port 0", "secret", "inverted", "offer_rate", "timeouts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	ok := Config{Mode: "debug", Port: 8080}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestLoad_BadFlag(t *testing.T) {
	if _, err := Load([]string{"--no-such-flag"}); err == nil {
		t.Fatalf("unknown flag accepted")
	}
}

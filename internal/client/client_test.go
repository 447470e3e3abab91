package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/riftline/sabi/internal/input"
	"github.com/riftline/sabi/internal/transport"
	"github.com/riftline/sabi/internal/wire"
)

func newTestClient(t *testing.T, addr string) *Client {
	t.Helper()
	componentCodec, err := wire.NewPlainCodec(zstd.SpeedFastest)
	if err != nil {
		t.Fatalf("NewPlainCodec: %v", err)
	}
	inputCodec, err := wire.NewPlainCodec(zstd.SpeedFastest)
	if err != nil {
		t.Fatalf("NewPlainCodec: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ServerAddr = addr
	cfg.PlayerName = "tester"
	return New(cfg, componentCodec, inputCodec, zap.NewNop())
}

func TestClientConnectSpawnsLocalPlayer(t *testing.T) {
	bus := transport.NewServerBus(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := bus.Upgrade(w, r); err != nil {
			t.Errorf("Upgrade: %v", err)
		}
	}))
	defer srv.Close()

	addr := "ws" + srv.URL[len("http"):]
	c := newTestClient(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	if !c.connected {
		t.Fatal("expected client to be marked connected")
	}
	if len(c.world.Entities()) != 1 {
		t.Fatalf("Entities() = %d, want 1 (the local player)", len(c.world.Entities()))
	}
}

func TestClientTickWithNoServerMessagesStillAdvances(t *testing.T) {
	bus := transport.NewServerBus(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := bus.Upgrade(w, r); err != nil {
			t.Errorf("Upgrade: %v", err)
		}
	}))
	defer srv.Close()

	addr := "ws" + srv.URL[len("http"):]
	c := newTestClient(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	c.keys.SetPressed(input.KeyRight, true)
	before := c.clientTick
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if c.clientTick.Value() != before.Value()+1 {
		t.Fatalf("clientTick = %v, want %v", c.clientTick, before.Next())
	}
}

func TestRateAccelClampsAtFloor(t *testing.T) {
	r := newRate()
	r.Accel(10)
	if r.multiplier != 0.5 {
		t.Fatalf("multiplier = %v, want 0.5 floor", r.multiplier)
	}
}

func TestRateDecelClampsAtCeiling(t *testing.T) {
	r := newRate()
	r.Decel(10)
	if r.multiplier != 1.5 {
		t.Fatalf("multiplier = %v, want 1.5 ceiling", r.multiplier)
	}
}

func TestRateAccelZeroResetsToNominal(t *testing.T) {
	r := newRate()
	r.Decel(0.3)
	r.Accel(0)
	if r.multiplier != 1 {
		t.Fatalf("multiplier = %v, want 1 after Accel(0) reset", r.multiplier)
	}
}

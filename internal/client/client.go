// Package client implements the game client: connects to a server bus,
// predicts its own player locally, and reconciles against authoritative
// server updates as they arrive. Input capture and rendering are an
// embedding application's job; this package only consumes a KeyState the
// caller drives and exposes the world for that caller to draw.
package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/riftline/sabi/internal/game"
	"github.com/riftline/sabi/internal/identity"
	"github.com/riftline/sabi/internal/input"
	"github.com/riftline/sabi/internal/metrics"
	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/replicate"
	"github.com/riftline/sabi/internal/sync"
	"github.com/riftline/sabi/internal/tick"
	"github.com/riftline/sabi/internal/transport"
	"github.com/riftline/sabi/internal/update"
	"github.com/riftline/sabi/internal/wire"
)

// Config holds client configuration.
type Config struct {
	ServerAddr string        `yaml:"server_addr"`
	PlayerName string        `yaml:"player_name"`
	TickRate   int           `yaml:"tick_rate"`
	TickPeriod time.Duration `yaml:"-"`
}

// DefaultConfig returns sane client defaults. A config file loaded with
// config.Load replaces them as a whole; config.Env overrides apply on
// top of whichever of the two is in use.
func DefaultConfig() Config {
	return Config{TickRate: 60, PlayerName: "player"}
}

// rate is the simplest sync.SimRate implementation: it tracks a
// multiplier on the nominal tick period, nudged by Accel/Decel and read
// by the run loop to pace Update calls.
type rate struct {
	multiplier float64
}

func newRate() *rate { return &rate{multiplier: 1} }

func (r *rate) Accel(x float64) {
	if x == 0 {
		r.multiplier = 1
		return
	}
	r.multiplier -= x
	if r.multiplier < 0.5 {
		r.multiplier = 0.5
	}
}

func (r *rate) Decel(x float64) {
	r.multiplier += x
	if r.multiplier > 1.5 {
		r.multiplier = 1.5
	}
}

// Client is the game client: owns the predicted world, the server
// connection, and the reconciliation loop.
type Client struct {
	config Config
	log    *zap.Logger

	bus      *transport.ClientBus
	world    *game.World
	identity *identity.Map
	store    *sync.Store
	pipeline *update.Client
	metrics  *metrics.Client
	rate     *rate

	componentCodec *wire.Codec
	inputCodec     *wire.Codec

	inputs      *input.Buffer
	keys        *input.KeyState
	predictions *PredictionBuffer
	reconciler  *Reconciler

	playerID   int
	clientTick tick.Network
	ack        tick.Ack
	connected  bool
}

// New creates a client ready to Connect, with its own world and a
// registry built and frozen against that same world (a client's
// replicated component maps must come from the world it actually
// simulates). componentCodec decompresses the COMPONENT channel
// (dictionary "update"); inputCodec compresses the outgoing
// CLIENT_INPUT channel (plain, per spec §6).
func New(cfg Config, componentCodec, inputCodec *wire.Codec, log *zap.Logger) *Client {
	world := game.NewWorld()
	registry := replicate.New()
	game.Register(registry, world)
	registry.Freeze()

	idmap := identity.New()
	store := sync.NewStore()

	c := &Client{
		config:         cfg,
		log:            log,
		world:          world,
		identity:       idmap,
		store:          store,
		pipeline:       update.NewClient(registry, idmap, store, componentCodec, log),
		metrics:        metrics.NewClient(),
		rate:           newRate(),
		componentCodec: componentCodec,
		inputCodec:     inputCodec,
		inputs:         input.NewBuffer(),
		keys:           input.NewKeyState(),
		predictions:    NewPredictionBuffer(int(tick.FrameBuffer) * 4),
		playerID:       1,
	}
	c.reconciler = NewReconciler(c.predictions, c.playerID)
	return c
}

// KeyState exposes the key state the caller should drive from its own
// input source each frame; ToIntents() is sampled once per tick.
func (c *Client) KeyState() *input.KeyState {
	return c.keys
}

// World exposes the predicted world for the caller to render.
func (c *Client) World() *game.World {
	return c.world
}

// Connect dials the server and exchanges the handshake.
func (c *Client) Connect(ctx context.Context) error {
	bus, err := transport.Dial(ctx, c.config.ServerAddr, c.log)
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", c.config.ServerAddr, err)
	}
	c.bus = bus

	hs := protocol.EncodeHandshake(protocol.Handshake{Version: 1, PlayerName: c.config.PlayerName})
	if err := bus.SendMessage(transport.Handshake, hs); err != nil {
		return fmt.Errorf("client: send handshake: %w", err)
	}

	c.connected = true
	c.world.SpawnPlayer(c.playerID, c.config.PlayerName, 0, 0)
	return nil
}

// Tick runs one client frame: sample input, predict locally, receive and
// apply server updates, reconcile on rewind. Called by Run's loop, or
// directly by a caller driving its own frame pacing (e.g. tests). A
// non-nil error is a fatal *update.SessionError (spec §7): the component
// channel produced an undecodable message and this session must be torn
// down; the caller should Disconnect and reconnect fresh rather than
// call Tick again on this Client.
func (c *Client) Tick() error {
	intent := c.keys.ToIntents()
	c.inputs.Sample(intent)
	c.predictions.RecordInput(c.clientTick, intent)

	c.world.SetPlayerIntent(c.playerID, intent)
	c.world.Update()
	c.predictions.RecordState(c.world.Snapshot())

	before := c.clientTick
	newTick, rewind, got, err := c.pipeline.Receive(c.clientTick, c.rate, c.world.SpawnRemote, func() ([]byte, bool) {
		return c.bus.ReceiveMessage(transport.Component)
	})
	c.clientTick = newTick
	if err != nil {
		return err
	}

	if got {
		c.ack.Record(rewind.To)
		c.metrics.ClockCorrections.Inc()
		if newTick.Value() != before.Value() {
			c.metrics.HardJumps.Inc()
			c.inputs.SetTick(newTick)
		}
		c.pipeline.Apply(rewind.To, c.world.Alive)
		result := c.reconciler.Reconcile(c.world, rewind.To, c.clientTick)
		c.metrics.RewindDistance.Observe(float64(result.ReplayedTicks))
	}

	c.sendInput()
	c.inputs.Advance()
	c.clientTick = c.clientTick.Next()
	return nil
}

func (c *Client) sendInput() {
	window := c.inputs.Window()
	msg := input.Message[protocol.Intent]{
		Tick:   c.inputs.CurrentTick(),
		Ack:    c.ack,
		Inputs: window,
	}
	raw := input.EncodeMessage(msg)
	compressed := c.inputCodec.Compress(raw)
	if err := c.bus.SendMessage(transport.ClientInput, compressed); err != nil {
		c.log.Debug("failed to send input, will retry next tick", zap.Error(err))
	}
}

// Run drives the client loop at the configured tick rate until ctx is
// canceled. A fatal error from Tick (spec §7: corrupt core message on
// the component channel) disconnects this session before returning, so
// the caller always gets a clean slate to Connect fresh against.
func (c *Client) Run(ctx context.Context) error {
	period := c.config.TickPeriod
	if period == 0 {
		period = time.Second / time.Duration(c.config.TickRate)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !c.bus.IsConnected() {
				return fmt.Errorf("client: lost connection to server")
			}
			if err := c.Tick(); err != nil {
				c.Disconnect()
				return fmt.Errorf("client: fatal session error: %w", err)
			}
			ticker.Reset(time.Duration(float64(period) * c.rate.multiplier))
		}
	}
}

// Disconnect closes the connection and forgets every remote entity.
func (c *Client) Disconnect() {
	if c.bus != nil {
		_ = c.bus.Close()
	}
	c.identity.Disconnect(c.world.Despawn)
	c.connected = false
}

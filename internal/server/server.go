// Package server implements the authoritative game server: receive
// inputs, apply them, simulate, select each client's interest set, then
// encode and send — the fixed per-tick ordering spec §5 guarantees.
package server

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riftline/sabi/internal/game"
	"github.com/riftline/sabi/internal/input"
	"github.com/riftline/sabi/internal/interest"
	"github.com/riftline/sabi/internal/lobby"
	"github.com/riftline/sabi/internal/metrics"
	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/replicate"
	"github.com/riftline/sabi/internal/tick"
	"github.com/riftline/sabi/internal/transport"
	"github.com/riftline/sabi/internal/update"
	"github.com/riftline/sabi/internal/wire"
)

// Config holds server configuration.
type Config struct {
	Port       int    `yaml:"port"`
	MaxPlayers int    `yaml:"max_players"`
	TickRate   int    `yaml:"tick_rate"`
	SyncRate   int    `yaml:"sync_rate"`
	MapPath    string `yaml:"map_path"`
}

// DefaultConfig returns sensible defaults. A config file loaded with
// config.Load replaces them as a whole; config.Env overrides apply on
// top of whichever of the two is in use.
func DefaultConfig() Config {
	return Config{
		Port:       7777,
		MaxPlayers: 4,
		TickRate:   60,
		SyncRate:   20,
	}
}

// clientBudget is the per-client per-tick byte budget the Interest
// engine's greedy acceptance honors (spec §4.E), chosen to stay well
// under wire.MaxDecompressedSize once several clients share a tick.
const clientBudget = 2048

// Server is the authoritative game server.
type Server struct {
	config Config
	log    *zap.Logger

	mu      sync.RWMutex
	running bool
	tick    tick.Network

	world    *game.World
	registry *replicate.Registry
	lobby    *lobby.Registry
	inputs   *input.PerClient[protocol.Intent]
	interest *interest.Engine
	pipeline *update.Server
	metrics  *metrics.Server

	bus            *transport.ServerBus
	componentCodec *wire.Codec
	inputCodec     *wire.Codec

	quitCh chan struct{}
	doneCh chan struct{}
}

// New creates a server wired around an already-registered, frozen
// replicate.Registry and a live transport bus.
func New(cfg Config, w *game.World, registry *replicate.Registry, bus *transport.ServerBus, componentCodec, inputCodec *wire.Codec, log *zap.Logger) *Server {
	rates := make(interest.Rates, len(registry.IDs()))
	for _, id := range registry.IDs() {
		rates[id] = 1.0
	}

	s := &Server{
		config:         cfg,
		log:            log,
		world:          w,
		registry:       registry,
		lobby:          lobby.NewRegistry(),
		inputs:         input.NewPerClient[protocol.Intent](),
		interest:       interest.New(registry, rates, log),
		metrics:        metrics.NewServer(),
		bus:            bus,
		componentCodec: componentCodec,
		inputCodec:     inputCodec,
		quitCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	s.pipeline = update.NewServer(registry, s.interest.Sizes(), componentCodec, log)
	return s
}

// World returns the server's game world.
func (s *Server) World() *game.World {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world
}

// Tick returns the current tick number.
func (s *Server) Tick() tick.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// IsRunning reports whether the tick loop is active.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Metrics exposes the server's Prometheus instrumentation for a
// cmd/sabi-server main to mount at /metrics.
func (s *Server) Metrics() *metrics.Server {
	return s.metrics
}

// Start begins the server tick loop on a new goroutine.
func (s *Server) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	go s.runTickLoop()
}

// StartBlocking runs the tick loop on the current goroutine.
func (s *Server) StartBlocking() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.runTickLoop()
}

func (s *Server) runTickLoop() {
	defer close(s.doneCh)

	period := time.Second / time.Duration(s.config.TickRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	dt := period.Seconds()

	for {
		select {
		case <-s.quitCh:
			return
		case <-ticker.C:
			start := time.Now()
			s.processTick(dt)
			s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		}
	}
}

// processTick runs one full server tick in the spec §5 order: discover
// new clients, receive inputs, apply inputs, simulate, select interest,
// assemble, send.
func (s *Server) processTick(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.admitNewClients()
	s.receiveInputs()
	s.applyInputs()

	s.world.Update()
	s.tick = tick.New(s.world.Tick)
	s.inputs.CleanOld(s.tick)

	clients := s.buildInterest()
	toSend := s.interest.Run(clients, dt)
	s.pipeline.Assemble(toSend)

	if err := s.pipeline.Send(s.tick, s.sendToClient); err != nil {
		s.log.Warn("failed to send update to a client this tick", zap.Error(err))
	}

	s.metrics.ConnectedClients.Set(float64(s.lobby.Len()))
	s.removeDisconnected()
}

func (s *Server) admitNewClients() {
	for _, client := range s.bus.ClientsID() {
		if _, ok := s.lobby.Get(client); ok {
			continue
		}
		payload, ok := s.bus.ReceiveMessage(client, transport.Handshake)
		if !ok {
			continue
		}
		hs, err := protocol.DecodeHandshake(payload)
		if err != nil {
			s.log.Warn("dropping malformed handshake", zap.Uint64("client_id", uint64(client)), zap.Error(err))
			continue
		}
		player := s.lobby.Join(client, hs.PlayerName)
		s.world.SpawnPlayer(player.PlayerID, player.Name, 0, 0)
		s.log.Info("player joined", zap.Int("player_id", player.PlayerID), zap.String("name", player.Name))
	}
}

// receiveInputs drains each client's pending CLIENT_INPUT frames. A
// decompression or decode failure on this channel is the spec §7 Fatal
// tier (corrupt core message type): the only correct response is to
// abort that client's session, not to drop the single frame and keep
// going, since a corrupt stream is not self-synchronizing.
func (s *Server) receiveInputs() {
	for _, client := range s.lobby.Clients() {
		for {
			payload, ok := s.bus.ReceiveMessage(client, transport.ClientInput)
			if !ok {
				break
			}
			raw, err := s.inputCodec.Decompress(payload)
			if err != nil {
				s.log.Error("fatal: failed to decompress client input, aborting session",
					zap.Uint64("client_id", uint64(client)), zap.Error(err))
				s.kickClient(client)
				break
			}
			msg, err := input.DecodeMessage(raw)
			if err != nil {
				s.log.Error("fatal: failed to decode client input, aborting session",
					zap.Uint64("client_id", uint64(client)), zap.Error(err))
				s.kickClient(client)
				break
			}
			s.inputs.Upsert(client, msg.Inputs)
		}
	}
}

// kickClient tears down a client's session immediately: it closes the
// transport peer (so the client observes a closed connection and can
// reconnect fresh) and forgets the client's lobby and input state right
// away, rather than waiting for removeDisconnected to notice at the end
// of the tick.
func (s *Server) kickClient(client protocol.ClientID) {
	s.bus.Disconnect(client)
	s.lobby.Leave(client)
	s.inputs.Forget(client)
}

func (s *Server) applyInputs() {
	for _, client := range s.lobby.Clients() {
		player, ok := s.lobby.Get(client)
		if !ok {
			continue
		}
		intent, ok := s.inputs.Get(client, s.tick)
		if !ok {
			s.metrics.InputsDropped.Inc()
			intent = protocol.IntentNone
		}
		s.world.SetPlayerIntent(player.PlayerID, intent)
	}
}

func (s *Server) buildInterest() map[protocol.ClientID]interest.ClientInterest {
	entities := s.world.Entities()
	ids := s.registry.IDs()

	candidates := make([]interest.Pair, 0, len(entities)*len(ids))
	for _, e := range entities {
		for _, id := range ids {
			candidates = append(candidates, interest.Pair{Entity: e, ID: id})
		}
	}

	clients := make(map[protocol.ClientID]interest.ClientInterest, s.lobby.Len())
	for _, client := range s.lobby.Clients() {
		clients[client] = interest.ClientInterest{Candidates: candidates, Budget: clientBudget}
	}
	return clients
}

func (s *Server) sendToClient(client protocol.ClientID, payload []byte) error {
	s.metrics.BytesSent.Add(float64(len(payload)))
	return s.bus.SendTo(client, transport.Component, payload)
}

func (s *Server) removeDisconnected() {
	connected := make(map[protocol.ClientID]struct{})
	for _, id := range s.bus.ClientsID() {
		connected[id] = struct{}{}
	}
	for _, client := range s.lobby.Clients() {
		if _, ok := connected[client]; ok {
			continue
		}
		s.lobby.Leave(client)
		s.inputs.Forget(client)
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.quitCh)
	<-s.doneCh
}

package update

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/riftline/sabi/internal/identity"
	"github.com/riftline/sabi/internal/interest"
	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/replicate"
	"github.com/riftline/sabi/internal/sync"
	"github.com/riftline/sabi/internal/tick"
	"github.com/riftline/sabi/internal/wire"
)

// Outbox is the server-side ClientEntityUpdates pending-send table of
// spec §3: ordered map ClientId -> EntityUpdate, cleared each tick
// after sending.
type Outbox struct {
	clients map[protocol.ClientID]*protocol.EntityUpdate
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{clients: make(map[protocol.ClientID]*protocol.EntityUpdate)}
}

func (o *Outbox) upsert(client protocol.ClientID) *protocol.EntityUpdate {
	if eu, ok := o.clients[client]; ok {
		return eu
	}
	eu := protocol.NewEntityUpdate()
	o.clients[client] = &eu
	return &eu
}

// Clear empties every client's pending update, called once sending
// completes for the tick.
func (o *Outbox) Clear() {
	for client := range o.clients {
		delete(o.clients, client)
	}
}

// Server is the server-side half of the Update Pipeline: assemble,
// compress, send per-client snapshots once per tick, after the
// Interest engine has run.
type Server struct {
	registry *replicate.Registry
	sizes    *interest.SizeEstimates
	codec    *wire.Codec
	log      *zap.Logger
	outbox   *Outbox
}

// NewServer creates the server-side update pipeline. codec must be a
// dictionary-trained wire.Codec keyed "update" (spec §6).
func NewServer(registry *replicate.Registry, sizes *interest.SizeEstimates, codec *wire.Codec, log *zap.Logger) *Server {
	return &Server{registry: registry, sizes: sizes, codec: codec, log: log, outbox: NewOutbox()}
}

// Assemble runs step 1 of spec §4.F: for every (client, pair) accepted
// by the Interest engine, encode the component and insert it into the
// outbox, updating the rolling size estimate.
func (s *Server) Assemble(toSend interest.ToSend) {
	for client, pairs := range toSend {
		eu := s.outbox.upsert(client)
		for _, pair := range pairs {
			codec, ok := s.registry.Lookup(pair.ID)
			if !ok {
				continue
			}
			data, has, err := codec.Encode(pair.Entity)
			if err != nil {
				s.log.Warn("encode failed, skipping pair",
					zap.String("component", s.registry.String(pair.ID)), zap.Error(err))
				continue
			}
			if !has {
				continue
			}
			s.sizes.Add(pair.ID, len(data))
			server := identity.FromEntity(pair.Entity)
			eu.Upsert(server).Set(pair.ID, data)
		}
	}
}

// SendFunc delivers one already-framed payload to one client on the
// component channel; bound to a concrete transport by the caller.
type SendFunc func(client protocol.ClientID, payload []byte) error

// Send runs steps 2–3 of spec §4.F: build, serialize, compress, and
// send each client's UpdateMessage, then clear the outbox.
func (s *Server) Send(t tick.Network, send SendFunc) error {
	defer s.outbox.Clear()

	for client, eu := range s.outbox.clients {
		msg := protocol.UpdateMessage{Tick: t, EntityUpdate: *eu}
		raw := EncodeMessage(msg)
		compressed := s.codec.Compress(raw)
		if err := send(client, compressed); err != nil {
			return err
		}
	}
	return nil
}

// Client is the client-side half of the Update Pipeline: receive,
// decompress, spawn missing entities, merge into the snapshot store,
// and (separately, via Apply) dispatch component updates for the
// current tick.
type Client struct {
	registry *replicate.Registry
	identity *identity.Map
	store    *sync.Store
	codec    *wire.Codec
	log      *zap.Logger
}

// NewClient creates the client-side update pipeline.
func NewClient(registry *replicate.Registry, idmap *identity.Map, store *sync.Store, codec *wire.Codec, log *zap.Logger) *Client {
	return &Client{registry: registry, identity: idmap, store: store, codec: codec, log: log}
}

// ReceiveFunc drains one pending compressed payload from the component
// channel, if any.
type ReceiveFunc func() ([]byte, bool)

// SessionError reports a spec §7 Fatal-tier failure on a core message
// type (decompression or deserialization failure): the only correct
// response is for the caller to abort the session and reconnect fresh,
// not to drop the single message and keep going.
type SessionError struct {
	Channel string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("update: fatal %s channel error, session must be aborted: %v", e.Channel, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Receive runs spec §4.F's client inbound steps 1–5: drain messages,
// apply clock correction, spawn unseen entities, and push into the
// snapshot store. Returns the rewind signal for this phase, if any
// message was received, and the corrected client tick. A non-nil error
// is a *SessionError: the component channel produced an undecodable
// message, and the caller must tear down and reconnect rather than
// continue this session.
func (c *Client) Receive(clientTick tick.Network, rate sync.SimRate, spawn identity.SpawnFunc, recv ReceiveFunc) (tick.Network, sync.Rewind, bool, error) {
	var tracker sync.ReceiveTracker

	for {
		payload, ok := recv()
		if !ok {
			break
		}

		raw, err := c.codec.Decompress(payload)
		if err != nil {
			c.log.Error("fatal: failed to decompress update message, aborting session", zap.Error(err))
			return clientTick, sync.Rewind{}, false, &SessionError{Channel: "component", Err: err}
		}

		msg, err := DecodeMessage(raw)
		if err != nil {
			c.log.Error("fatal: failed to decode update message, aborting session", zap.Error(err))
			return clientTick, sync.Rewind{}, false, &SessionError{Channel: "component", Err: err}
		}

		clientTick = sync.Correct(clientTick, msg.Tick, rate, c.log)
		tracker.Observe(msg.Tick)

		msg.EntityUpdate.Range(func(server identity.ServerEntity, _ protocol.ComponentsUpdate) {
			c.identity.SpawnOrGet(server, spawn)
		})

		c.store.Push(msg)
	}

	rewind, got := tracker.Rewind()
	return clientTick, rewind, got, nil
}

// Apply runs the client per-tick apply stage: for the snapshot stored
// at t, decode and apply every (ServerEntity, ComponentsUpdate) pair
// through the registry, resolving ServerEntity via the identity map.
// A stored tick without a matching local entity yet is logged and
// skipped (spec §7: recoverable, the spawning message will arrive or
// has already arrived).
func (c *Client) Apply(t tick.Network, alive identity.IsAliveFunc) {
	msg, ok := c.store.Get(t)
	if !ok {
		return
	}

	msg.EntityUpdate.Range(func(server identity.ServerEntity, cu protocol.ComponentsUpdate) {
		entity, ok := c.identity.Get(server, alive)
		if !ok {
			c.log.Debug("no local entity for server entity at apply time",
				zap.Uint64("server_entity", uint64(server)))
			return
		}

		cu.Range(func(id replicate.ID, data []byte) {
			codec, ok := c.registry.Lookup(id)
			if !ok {
				return
			}
			if _, err := codec.Apply(entity, data); err != nil {
				c.log.Warn("component apply failed",
					zap.String("component", c.registry.String(id)), zap.Error(err))
			}
		})
	})
}

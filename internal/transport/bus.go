// Package transport implements the channelled message bus the core
// replication pipelines consume (spec §6): at least a COMPONENT channel
// and a CLIENT_INPUT channel, each independently reliable. The core
// treats the UDP transport and its authentication/handshake as
// external collaborators; this package gives that collaborator a
// concrete body over WebSocket so the rest of the repository has
// something real to run against.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/riftline/sabi/internal/protocol"
)

// connectRateLimit caps the rate of new WebSocket upgrades the server
// bus accepts, so a burst of connection attempts cannot starve already
// connected peers of CPU during the handshake.
const connectRateLimit = 20

// Channel identifies one of the bus's logical channels. The core only
// knows about Component and ClientInput; additional channels an
// application layer defines are ignored by the core, per spec §6.
type Channel uint8

const (
	// Component carries server->client snapshots.
	Component Channel = iota
	// ClientInput carries client->server inputs.
	ClientInput
	// Handshake carries the initial version/name exchange.
	Handshake
)

const channelCount = 3

// frame is one message multiplexed over a single WebSocket connection:
// one physical socket, several logical channels, told apart by a 1-byte
// channel prefix on each WebSocket message.
type frame struct {
	channel Channel
	payload []byte
}

// Bus is the contract the replication core consumes: send/receive per
// channel, enumerate connected clients, and report connectivity.
type Bus interface {
	SendMessage(channel Channel, payload []byte) error
	ReceiveMessage(channel Channel) ([]byte, bool)
	ClientsID() []protocol.ClientID
	IsConnected() bool
}

// peer is one connected client as seen from the server side.
type peer struct {
	id   protocol.ClientID
	conn *websocket.Conn
	inbox [channelCount]chan []byte
	mu   sync.Mutex
}

// ServerBus is the server-side Bus: it accepts WebSocket connections,
// assigns each a ClientID derived from a fresh UUID session, and
// demultiplexes frames into per-channel, per-client inboxes.
type ServerBus struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	limiter  *rate.Limiter

	mu       sync.RWMutex
	peers    map[protocol.ClientID]*peer
	sessions map[uuid.UUID]protocol.ClientID
}

// NewServerBus creates a server bus ready to be handed to an
// http.Server as a handler via Upgrade.
func NewServerBus(log *zap.Logger) *ServerBus {
	return &ServerBus{
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		limiter:  rate.NewLimiter(connectRateLimit, connectRateLimit),
		peers:    make(map[protocol.ClientID]*peer),
		sessions: make(map[uuid.UUID]protocol.ClientID),
	}
}

// Upgrade accepts an incoming HTTP connection as a new peer, subject to
// the bus's connection-attempt rate limit.
func (b *ServerBus) Upgrade(w http.ResponseWriter, r *http.Request) (protocol.ClientID, error) {
	if !b.limiter.Allow() {
		return 0, fmt.Errorf("transport: connection rate limit exceeded")
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return 0, err
	}

	session := uuid.New()
	id := sessionToClientID(session)

	p := &peer{id: id, conn: conn}
	for i := range p.inbox {
		p.inbox[i] = make(chan []byte, 64)
	}

	b.mu.Lock()
	b.peers[id] = p
	b.sessions[session] = id
	b.mu.Unlock()

	go b.readLoop(p)

	b.log.Debug("peer connected", zap.Uint64("client_id", uint64(id)), zap.String("session", session.String()))
	return id, nil
}

// sessionToClientID folds a UUID session id down to the uint64 ClientId
// space the protocol uses; collisions are astronomically unlikely and
// harmless (a fresh session simply gets a fresh id on retry).
func sessionToClientID(session uuid.UUID) protocol.ClientID {
	b := session[:8]
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return protocol.ClientID(v)
}

func (b *ServerBus) readLoop(p *peer) {
	defer b.disconnect(p.id)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if len(data) < 1 {
			continue
		}
		ch := Channel(data[0])
		payload := data[1:]
		if int(ch) >= channelCount {
			continue
		}
		select {
		case p.inbox[ch] <- payload:
		default:
			// inbox full: drop oldest-equivalent by dropping this frame.
			// Benign per spec §7 — the sliding-window/merge designs
			// tolerate occasional loss.
		}
	}
}

// Disconnect forcibly closes client's connection, e.g. after a fatal
// protocol violation on one of its channels. Idempotent: closing an
// already-closed or unknown peer is a no-op.
func (b *ServerBus) Disconnect(client protocol.ClientID) {
	b.disconnect(client)
}

func (b *ServerBus) disconnect(id protocol.ClientID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.peers[id]; ok {
		_ = p.conn.Close()
		delete(b.peers, id)
	}
}

// SendMessage writes payload on channel to every connected client.
func (b *ServerBus) SendMessage(channel Channel, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.peers {
		if err := b.sendTo(p, channel, payload); err != nil {
			return err
		}
	}
	return nil
}

// SendTo writes payload on channel to a single client.
func (b *ServerBus) SendTo(client protocol.ClientID, channel Channel, payload []byte) error {
	b.mu.RLock()
	p, ok := b.peers[client]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: unknown client %d", client)
	}
	return b.sendTo(p, channel, payload)
}

func (b *ServerBus) sendTo(p *peer, channel Channel, payload []byte) error {
	framed := make([]byte, 1+len(payload))
	framed[0] = byte(channel)
	copy(framed[1:], payload)

	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return p.conn.WriteMessage(websocket.BinaryMessage, framed)
}

// ReceiveMessage drains one pending message for client on channel.
func (b *ServerBus) ReceiveMessage(client protocol.ClientID, channel Channel) ([]byte, bool) {
	b.mu.RLock()
	p, ok := b.peers[client]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}
	select {
	case data := <-p.inbox[channel]:
		return data, true
	default:
		return nil, false
	}
}

// ClientsID returns every currently connected client id.
func (b *ServerBus) ClientsID() []protocol.ClientID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]protocol.ClientID, 0, len(b.peers))
	for id := range b.peers {
		out = append(out, id)
	}
	return out
}

// IsConnected reports whether any client is connected.
func (b *ServerBus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers) > 0
}

// ClientBus is the client-side Bus: a single WebSocket connection to
// the server, demultiplexed the same way.
type ClientBus struct {
	log   *zap.Logger
	conn  *websocket.Conn
	inbox [channelCount]chan []byte
	mu    sync.Mutex

	connected bool
}

// Dial connects to a server bus at addr (e.g. "ws://host:port/sabi").
func Dial(ctx context.Context, addr string, log *zap.Logger) (*ClientBus, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	b := &ClientBus{log: log, conn: conn, connected: true}
	for i := range b.inbox {
		b.inbox[i] = make(chan []byte, 64)
	}
	go b.readLoop()
	return b, nil
}

func (b *ClientBus) readLoop() {
	defer func() {
		b.mu.Lock()
		b.connected = false
		b.mu.Unlock()
	}()
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			return
		}
		if len(data) < 1 {
			continue
		}
		ch := Channel(data[0])
		if int(ch) >= channelCount {
			continue
		}
		select {
		case b.inbox[ch] <- data[1:]:
		default:
		}
	}
}

// SendMessage writes payload on channel to the server.
func (b *ClientBus) SendMessage(channel Channel, payload []byte) error {
	framed := make([]byte, 1+len(payload))
	framed[0] = byte(channel)
	copy(framed[1:], payload)

	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return b.conn.WriteMessage(websocket.BinaryMessage, framed)
}

// ReceiveMessage drains one pending message on channel, if any.
func (b *ClientBus) ReceiveMessage(channel Channel) ([]byte, bool) {
	select {
	case data := <-b.inbox[channel]:
		return data, true
	default:
		return nil, false
	}
}

// ClientsID is meaningless from the client's own perspective; it always
// returns nil. Present to satisfy shared tooling that type-switches
// over Bus-shaped values.
func (b *ClientBus) ClientsID() []protocol.ClientID { return nil }

// IsConnected reports whether the socket is still open.
func (b *ClientBus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Close closes the underlying connection.
func (b *ClientBus) Close() error {
	return b.conn.Close()
}

// LocalAddr exposes the dialed connection's local address for logging.
func (b *ClientBus) LocalAddr() net.Addr {
	return b.conn.LocalAddr()
}

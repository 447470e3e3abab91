// Package lobby maps connected clients to their player entities. Room
// discovery/matchmaking (room codes, room listings) is out of scope —
// this runtime assumes a client already knows how to reach a server.
package lobby

import (
	"sync"

	"github.com/riftline/sabi/internal/protocol"
)

// Player is one connected client's player identity.
type Player struct {
	ClientID protocol.ClientID
	PlayerID int
	Name     string
}

// Registry is the ClientId -> player-entity mapping the input-apply
// phase uses to route a received ClientInputMessage to the right
// player's intent, and the interest engine uses to know which clients
// are currently present.
type Registry struct {
	mu      sync.RWMutex
	players map[protocol.ClientID]Player
	nextID  int
}

// NewRegistry creates an empty player registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[protocol.ClientID]Player)}
}

// Join registers a newly connected client under a fresh player id.
func (r *Registry) Join(client protocol.ClientID, name string) Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	p := Player{ClientID: client, PlayerID: r.nextID, Name: name}
	r.players[client] = p
	return p
}

// Leave removes a disconnected client.
func (r *Registry) Leave(client protocol.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, client)
}

// Get returns the player bound to client, if connected.
func (r *Registry) Get(client protocol.ClientID) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[client]
	return p, ok
}

// Clients returns every currently connected client id.
func (r *Registry) Clients() []protocol.ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.ClientID, 0, len(r.players))
	for c := range r.players {
		out = append(out, c)
	}
	return out
}

// Len reports how many clients are connected.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

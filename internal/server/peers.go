package server

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Peer is the display bookkeeping kept for one connected client.
type Peer struct {
	ID          string    `json:"id"`
	Nickname    string    `json:"nickname"`
	IP          string    `json:"ip"`
	RemoteAddr  string    `json:"remote_addr"`
	JoinedAt    uint32    `json:"joined_at"`
	ConnectedAt time.Time `json:"connected_at"`
}

// PeerRegistry tracks currently connected peers.
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{peers: make(map[string]Peer)}
}

// Join records a new peer. ts is the generator timestamp at connect and
// names the peer Client-<ts>.
func (r *PeerRegistry) Join(addr net.Addr, ts uint32) Peer {
	remote := ""
	ip := ""
	if addr != nil {
		remote = addr.String()
		ip = remote
		if host, _, err := net.SplitHostPort(remote); err == nil {
			ip = host
		}
	}
	p := Peer{
		ID:          uuid.NewString(),
		Nickname:    fmt.Sprintf("Client-%d", ts),
		IP:          ip,
		RemoteAddr:  remote,
		JoinedAt:    ts,
		ConnectedAt: time.Now().UTC(),
	}
	r.mu.Lock()
	r.peers[p.ID] = p
	r.mu.Unlock()
	return p
}

func (r *PeerRegistry) Leave(id string) {
	r.mu.Lock()
	delete(r.peers, id)
	r.mu.Unlock()
}

func (r *PeerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Snapshot returns connected peers ordered by connect time.
func (r *PeerRegistry) Snapshot() []Peer {
	r.mu.RLock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

package transport

import (
	"log/slog"
	"sync"

	"github.com/meshpact/trustfabric/crypto"
)

// Peer is a dialable node: the address to reach it at and the token it must
// present at handshake time.
type Peer struct {
	Address string
	Token   crypto.Token
}

// Pusher fans a record out to a set of peers in parallel, dialing fresh
// connections for every push. It keeps no long-lived state: participants
// come and go with the topology, so there is no membership to maintain
// between calls, unlike a persistent gossip network.
type Pusher struct {
	credentials crypto.PrivateKey
}

// NewPusher builds a Pusher that signs outgoing connections with credentials.
func NewPusher(credentials crypto.PrivateKey) *Pusher {
	return &Pusher{credentials: credentials}
}

// Push dials every peer concurrently, sends msg once connected, and closes
// the connection. It blocks until every dial has either succeeded and sent
// or failed; a single peer's failure does not block or fail the others.
func (p *Pusher) Push(msg []byte, peers []Peer) {
	var wg sync.WaitGroup
	for _, peer := range peers {
		wg.Add(1)
		go func(peer Peer) {
			defer wg.Done()
			conn, err := Dial(peer.Address, p.credentials, peer.Token)
			if err != nil {
				slog.Info("transport: could not reach peer", "address", peer.Address, "error", err)
				return
			}
			defer conn.Shutdown()
			if err := conn.Send(msg); err != nil {
				slog.Info("transport: could not push to peer", "address", peer.Address, "error", err)
			}
		}(peer)
	}
	wg.Wait()
}

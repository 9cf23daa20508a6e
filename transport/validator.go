package transport

import (
	"sync"

	"github.com/meshpact/trustfabric/crypto"
)

// ValidateConnection decides, asynchronously, whether an incoming connection
// from token should be promoted to a live Connection. The channel receives
// exactly one value.
type ValidateConnection interface {
	ValidateConnection(token crypto.Token) chan bool
}

type acceptAll struct{}

func (a acceptAll) ValidateConnection(token crypto.Token) chan bool {
	response := make(chan bool, 1)
	response <- true
	return response
}

// AcceptAllConnections validates every incoming connection. Useful for
// local testing and for relays that accept traffic from anyone.
var AcceptAllConnections = acceptAll{}

// ValidateSingleConnection only accepts a connection from one fixed token,
// the shape a participant dialing a specific referee expects on its side.
type ValidateSingleConnection crypto.Token

func (v ValidateSingleConnection) ValidateConnection(token crypto.Token) chan bool {
	response := make(chan bool, 1)
	response <- crypto.Token(v).Equal(token)
	return response
}

// AcceptValidConnections validates against a mutable membership list, the
// shape a node servicing a fixed topology of participants and referees uses.
type AcceptValidConnections struct {
	mu    sync.Mutex
	valid []crypto.Token
}

// NewValidConnections creates a validator seeded with an initial membership.
func NewValidConnections(tokens []crypto.Token) *AcceptValidConnections {
	valid := make([]crypto.Token, len(tokens))
	copy(valid, tokens)
	return &AcceptValidConnections{valid: valid}
}

// Add admits a new token, if not already present.
func (a *AcceptValidConnections) Add(token crypto.Token) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.valid {
		if existing.Equal(token) {
			return
		}
	}
	a.valid = append(a.valid, token)
}

// Remove revokes a token's membership.
func (a *AcceptValidConnections) Remove(token crypto.Token) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.valid {
		if existing.Equal(token) {
			a.valid = append(a.valid[:i], a.valid[i+1:]...)
			return
		}
	}
}

func (a *AcceptValidConnections) ValidateConnection(token crypto.Token) chan bool {
	response := make(chan bool, 1)
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.valid {
		if existing.Equal(token) {
			response <- true
			return response
		}
	}
	response <- false
	return response
}

// Package topology models the fixed set of keyed members and directed
// links a transaction runs over: who must promise, who must commit, and
// who a node can reach to push a record to.
package topology

import (
	"github.com/meshpact/trustfabric/crypto"
	"github.com/meshpact/trustfabric/util"
)

// RoleSet is a bitmask of the roles a Member plays in a transaction.
type RoleSet uint8

const (
	Participant RoleSet = 1 << iota
	Referee
)

// Has reports whether role is set in this RoleSet.
func (r RoleSet) Has(role RoleSet) bool {
	return r&role != 0
}

// Member is a node identified by a public key, with an optional physical
// address and an optional opaque agent-local secret. Every member can relay
// gossip regardless of role, so relaying has no flag of its own.
type Member struct {
	Key     crypto.Token `json:"key"`
	Address string       `json:"address,omitempty"`
	Handle  []byte       `json:"handle,omitempty"`
	Roles   RoleSet      `json:"roles"`
}

// Link is a directed, anonymized adjacency between two member keys. Links
// exist purely for gossip reach; they carry no vote or value of their own.
type Link struct {
	SourceKey crypto.Token `json:"sourceKey"`
	TargetKey crypto.Token `json:"targetKey"`
	Nonce     uint64       `json:"nonce"`
	Terms     []byte       `json:"terms,omitempty"`
}

// Topology is the immutable-per-transaction set of members and links it
// runs over. Two topologies are the same transaction's topology only if
// they are deeply equal; any other difference is a protocol violation.
type Topology struct {
	Members []Member `json:"members"`
	Links   []Link   `json:"links"`
}

// Participants returns the keys of every member whose role set includes
// Participant.
func (t Topology) Participants() []crypto.Token {
	var keys []crypto.Token
	for _, m := range t.Members {
		if m.Roles.Has(Participant) {
			keys = append(keys, m.Key)
		}
	}
	return keys
}

// Referees returns the keys of every member whose role set includes
// Referee.
func (t Topology) Referees() []crypto.Token {
	var keys []crypto.Token
	for _, m := range t.Members {
		if m.Roles.Has(Referee) {
			keys = append(keys, m.Key)
		}
	}
	return keys
}

// HasParticipant reports whether key is a participant member of t.
func (t Topology) HasParticipant(key crypto.Token) bool {
	for _, m := range t.Members {
		if m.Key.Equal(key) && m.Roles.Has(Participant) {
			return true
		}
	}
	return false
}

// HasReferee reports whether key is a referee member of t.
func (t Topology) HasReferee(key crypto.Token) bool {
	for _, m := range t.Members {
		if m.Key.Equal(key) && m.Roles.Has(Referee) {
			return true
		}
	}
	return false
}

// MemberByKey finds the member with the given key, if any.
func (t Topology) MemberByKey(key crypto.Token) (Member, bool) {
	for _, m := range t.Members {
		if m.Key.Equal(key) {
			return m, true
		}
	}
	return Member{}, false
}

// ReachablePeers is the union of every directly-addressable member (other
// than ourKey) and the other endpoint of every link incident to ourKey,
// deduplicated. It is used only to pick gossip push targets.
func (t Topology) ReachablePeers(ourKey crypto.Token) []crypto.Token {
	seen := util.Set[crypto.Token]{}
	var peers []crypto.Token
	add := func(key crypto.Token) {
		if key.Equal(ourKey) {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		peers = append(peers, key)
	}
	for _, m := range t.Members {
		if m.Address != "" {
			add(m.Key)
		}
	}
	for _, l := range t.Links {
		if l.SourceKey.Equal(ourKey) {
			add(l.TargetKey)
		}
		if l.TargetKey.Equal(ourKey) {
			add(l.SourceKey)
		}
	}
	return peers
}

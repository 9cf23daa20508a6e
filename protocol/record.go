// Package protocol implements the transaction record: its deterministic
// digest, signature merge semantics, structural/temporal validation, role
// evaluation, and binary wire encoding. It never imports a transport or
// storage package — it is handed values and capabilities by the caller.
package protocol

import (
	"github.com/meshpact/trustfabric/crypto"
	"github.com/meshpact/trustfabric/topology"
)

// SigType is the signed meaning of a Signature: whether it is a promise or
// commit, and whether it is an affirmative or negative vote.
type SigType int8

const (
	NoCommit  SigType = -2
	NoPromise SigType = -1
	Promise   SigType = 1
	Commit    SigType = 2
)

func (s SigType) String() string {
	switch s {
	case Promise:
		return "promise"
	case NoPromise:
		return "nopromise"
	case Commit:
		return "commit"
	case NoCommit:
		return "nocommit"
	default:
		return "unknown"
	}
}

// IsPromiseKind reports whether s is Promise or NoPromise.
func (s SigType) IsPromiseKind() bool {
	return s == Promise || s == NoPromise
}

// IsCommitKind reports whether s is Commit or NoCommit.
func (s SigType) IsCommitKind() bool {
	return s == Commit || s == NoCommit
}

// IsApproval reports whether s is the affirmative member of its kind.
func (s SigType) IsApproval() bool {
	return s == Promise || s == Commit
}

// Signature ties a signer's public key to its vote over a digest.
type Signature struct {
	Type  SigType         `json:"type"`
	Key   crypto.Token    `json:"key"`
	Value crypto.Signature `json:"value"`
}

// TrxRecord is the protocol message and the unit of storage: a single
// multi-party transaction's state as observed or merged by this node.
//
// TransactionCode, SessionCode, Payload, Topology, Start, PromisesDue and
// CommitsDue are immutable for the life of the transaction; any mismatch
// between a prior and incoming record sharing a TransactionCode is fatal.
type TrxRecord struct {
	TransactionCode crypto.Hash        `json:"transactionCode"`
	SessionCode     crypto.Hash        `json:"sessionCode"`
	Payload         []byte             `json:"payload"`
	Topology        topology.Topology  `json:"topology"`
	Start           int64              `json:"start"`
	PromisesDue     int64              `json:"promisesDue"`
	CommitsDue      int64              `json:"commitsDue"`
	Promises        []Signature        `json:"promises"`
	Commits         []Signature        `json:"commits"`
}

// Clone makes a shallow-value copy of the record with independently
// growable Promises/Commits slices, so appending a signature never mutates
// a value another caller still holds a reference to.
func (r TrxRecord) Clone() TrxRecord {
	clone := r
	clone.Promises = append([]Signature(nil), r.Promises...)
	clone.Commits = append([]Signature(nil), r.Commits...)
	return clone
}

// PromiseKeys returns the keys present in Promises, in stored order.
func (r TrxRecord) PromiseKeys() []crypto.Token {
	keys := make([]crypto.Token, len(r.Promises))
	for i, s := range r.Promises {
		keys[i] = s.Key
	}
	return keys
}

// CommitKeys returns the keys present in Commits, in stored order.
func (r TrxRecord) CommitKeys() []crypto.Token {
	keys := make([]crypto.Token, len(r.Commits))
	for i, s := range r.Commits {
		keys[i] = s.Key
	}
	return keys
}

// HasPromiseFrom reports whether key already appears in Promises.
func (r TrxRecord) HasPromiseFrom(key crypto.Token) bool {
	for _, s := range r.Promises {
		if s.Key.Equal(key) {
			return true
		}
	}
	return false
}

// HasCommitFrom reports whether key already appears in Commits.
func (r TrxRecord) HasCommitFrom(key crypto.Token) bool {
	for _, s := range r.Commits {
		if s.Key.Equal(key) {
			return true
		}
	}
	return false
}

// Package participant implements the per-node transaction participant state
// machine: the driver that receives a record, validates and merges it,
// works out what this node still needs to sign, signs it via the Signer
// capability, and fans the result out to reachable peers via the Storage
// capability's push hook. Storage, Signer and Decider are dependency
// injected; the driver never constructs them.
package participant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meshpact/trustfabric/crypto"
	"github.com/meshpact/trustfabric/protocol"
)

// Signer produces and verifies signatures over digests on this node's
// behalf, and derives which key this node signs under for a given session.
// Key management itself (where the private key lives, whether it is
// unlocked from a vault) is entirely the implementation's concern.
type Signer interface {
	GetOurKey(sessionCode crypto.Hash) (crypto.Token, error)
	Sign(digest string) (crypto.Signature, error)
	Verify(key crypto.Token, digest string, value crypto.Signature) bool
}

// Storage is the durable-state capability: prior records, peer-last-known
// records, and the invalid-record sink. PushPeerRecord is the transport
// hook — the driver calls it once per reachable peer whose last-known
// record is missing or stale, and awaits all of them before returning.
//
// SetTransaction persists the node's own authoritative merged record under
// its TransactionCode so a later GetTransaction call returns it. The base
// protocol never names this write explicitly — it only says "the prior
// record by transactionCode" is loaded from storage — so something must
// put it there; see DESIGN.md for this gap and its resolution.
type Storage interface {
	GetTransaction(ctx context.Context, code crypto.Hash) (*protocol.TrxRecord, error)
	SetTransaction(ctx context.Context, record protocol.TrxRecord) error
	SetPeerRecord(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error
	GetPeerRecord(ctx context.Context, peer crypto.Token, code crypto.Hash) (*protocol.TrxRecord, error)
	PushPeerRecord(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error
	LogInvalid(ctx context.Context, record protocol.TrxRecord, cause error) error
}

// Decider supplies this node's policy: whether to approve a pending promise
// or commit. The core never hard-codes approval logic.
type Decider interface {
	ShouldPromise(record protocol.TrxRecord) bool
	ShouldCommit(record protocol.TrxRecord) bool
}

// Configurable is implemented by any JSON-loadable configuration type, the
// same contract the teacher's middleware/config.LoadConfig[T] generic
// depends on.
type Configurable interface {
	Check() error
}

// Config bundles the two policy knobs the driver consults outside of the
// Decider: the randomness predicate parameters and the timing rules.
type Config struct {
	CodeOptions   protocol.CodeOptions   `json:"codeOptions"`
	TimingOptions protocol.TimingOptions `json:"timingOptions"`
}

func (c Config) Check() error {
	if c.CodeOptions.MinDistinctBytes < 1 {
		return fmt.Errorf("codeOptions.minDistinctBytes must be at least 1")
	}
	if c.TimingOptions.MinPromiseTime < 0 {
		return fmt.Errorf("timingOptions.minPromiseTime must be non-negative")
	}
	return nil
}

// LoadConfig reads and validates a JSON configuration file, a direct
// generalization of the teacher's middleware/config.LoadConfig[T].
func LoadConfig[T Configurable](path string) (*T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open configuration file: %v", err)
	}
	defer file.Close()
	var config T
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("could not parse configuration file: %v", err)
	}
	if err := config.Check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return &config, nil
}

package participant

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshpact/trustfabric/crypto"
	"github.com/meshpact/trustfabric/protocol"
)

// MemorySigner is an in-memory Signer: a single fixed key pair, used
// regardless of session, plus direct ed25519 verification. It is the
// simplest possible Signer and the one the demo CLI and tests reach for;
// a host that needs per-session keys derived from sessionCode supplies its
// own implementation.
type MemorySigner struct {
	key crypto.PrivateKey
}

// NewMemorySigner wraps a fixed private key as a Signer.
func NewMemorySigner(key crypto.PrivateKey) *MemorySigner {
	return &MemorySigner{key: key}
}

func (s *MemorySigner) GetOurKey(sessionCode crypto.Hash) (crypto.Token, error) {
	return s.key.PublicKey(), nil
}

func (s *MemorySigner) Sign(digest string) (crypto.Signature, error) {
	return s.key.Sign([]byte(digest)), nil
}

func (s *MemorySigner) Verify(key crypto.Token, digest string, value crypto.Signature) bool {
	return key.Verify([]byte(digest), value)
}

// MemoryStorage is an in-memory Storage: mutex-guarded maps, no goroutines
// beyond what the caller already provides. Grounded in the teacher's
// test-double style for its socket fakes — a thin, synchronous stand-in
// good enough for unit tests and the demo CLI, not meant to survive a
// process restart.
type MemoryStorage struct {
	mu            sync.Mutex
	transactions  map[crypto.Hash]protocol.TrxRecord
	peerRecords   map[crypto.Token]map[crypto.Hash]protocol.TrxRecord
	invalid       []InvalidEntry
	pusher        func(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error
}

// InvalidEntry is one rejected update, kept for later inspection.
type InvalidEntry struct {
	Record protocol.TrxRecord
	Cause  error
}

// NewMemoryStorage builds an empty in-memory Storage. pusher, if non-nil, is
// invoked by PushPeerRecord; a nil pusher makes PushPeerRecord a no-op,
// useful when a test only cares about the merged record, not delivery.
func NewMemoryStorage(pusher func(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error) *MemoryStorage {
	return &MemoryStorage{
		transactions: make(map[crypto.Hash]protocol.TrxRecord),
		peerRecords:  make(map[crypto.Token]map[crypto.Hash]protocol.TrxRecord),
		pusher:       pusher,
	}
}

func (s *MemoryStorage) GetTransaction(ctx context.Context, code crypto.Hash) (*protocol.TrxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.transactions[code]
	if !ok {
		return nil, nil
	}
	clone := record.Clone()
	return &clone, nil
}

func (s *MemoryStorage) SetTransaction(ctx context.Context, record protocol.TrxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[record.TransactionCode] = record.Clone()
	return nil
}

func (s *MemoryStorage) SetPeerRecord(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peerRecords[peer] == nil {
		s.peerRecords[peer] = make(map[crypto.Hash]protocol.TrxRecord)
	}
	s.peerRecords[peer][record.TransactionCode] = record.Clone()
	return nil
}

func (s *MemoryStorage) GetPeerRecord(ctx context.Context, peer crypto.Token, code crypto.Hash) (*protocol.TrxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPeer, ok := s.peerRecords[peer]
	if !ok {
		return nil, nil
	}
	record, ok := byPeer[code]
	if !ok {
		return nil, nil
	}
	clone := record.Clone()
	return &clone, nil
}

func (s *MemoryStorage) PushPeerRecord(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error {
	if s.pusher == nil {
		return nil
	}
	if err := s.pusher(ctx, peer, record); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrCapability, err)
	}
	return nil
}

func (s *MemoryStorage) LogInvalid(ctx context.Context, record protocol.TrxRecord, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalid = append(s.invalid, InvalidEntry{Record: record, Cause: cause})
	return nil
}

// Invalid returns every record logged through LogInvalid, in order.
func (s *MemoryStorage) Invalid() []InvalidEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]InvalidEntry(nil), s.invalid...)
}

// AlwaysApprove is a Decider that approves every promise and commit it is
// asked about — the default for tests and the demo CLI.
type AlwaysApprove struct{}

func (AlwaysApprove) ShouldPromise(record protocol.TrxRecord) bool { return true }
func (AlwaysApprove) ShouldCommit(record protocol.TrxRecord) bool  { return true }

// NeverApprove is a Decider that rejects every promise and commit, useful
// for exercising the nopromise/nocommit path in tests.
type NeverApprove struct{}

func (NeverApprove) ShouldPromise(record protocol.TrxRecord) bool { return false }
func (NeverApprove) ShouldCommit(record protocol.TrxRecord) bool  { return false }

package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/meshpact/trustfabric/crypto"
	"github.com/meshpact/trustfabric/topology"
)

type directVerifier struct{}

func (directVerifier) Verify(key crypto.Token, digest string, value crypto.Signature) bool {
	return key.Verify([]byte(digest), value)
}

func randomHash() crypto.Hash {
	token, _ := crypto.RandomAsymetricKey()
	return crypto.Hasher(token[:])
}

func newTopology(participants, referees []crypto.Token) topology.Topology {
	members := make([]topology.Member, 0, len(participants)+len(referees))
	add := func(key crypto.Token, roles topology.RoleSet) {
		for i, m := range members {
			if m.Key.Equal(key) {
				members[i].Roles |= roles
				return
			}
		}
		members = append(members, topology.Member{Key: key, Roles: roles})
	}
	for _, p := range participants {
		add(p, topology.Participant)
	}
	for _, r := range referees {
		add(r, topology.Referee)
	}
	return topology.Topology{Members: members}
}

func baseRecord(t *testing.T, participants, referees []crypto.Token) TrxRecord {
	t.Helper()
	now := time.Now().UnixMilli()
	return TrxRecord{
		TransactionCode: randomHash(),
		SessionCode:     randomHash(),
		Payload:         []byte("transfer 10 units"),
		Topology:        newTopology(participants, referees),
		Start:           now - 1000,
		PromisesDue:     now + 60_000,
		CommitsDue:      now + 120_000,
	}
}

func signPromise(t *testing.T, record TrxRecord, key crypto.Token, priv crypto.PrivateKey, sigType SigType) Signature {
	t.Helper()
	digest, err := record.PromiseDigest(sigType.String())
	if err != nil {
		t.Fatalf("promise digest: %v", err)
	}
	return Signature{Type: sigType, Key: key, Value: priv.Sign([]byte(digest))}
}

func signCommit(t *testing.T, record TrxRecord, key crypto.Token, priv crypto.PrivateKey, sigType SigType) Signature {
	t.Helper()
	digest, err := record.CommitDigest(sigType.String())
	if err != nil {
		t.Fatalf("commit digest: %v", err)
	}
	return Signature{Type: sigType, Key: key, Value: priv.Sign([]byte(digest))}
}

func TestDigestDeterminism(t *testing.T) {
	p1, _ := crypto.RandomAsymetricKey()
	r1, _ := crypto.RandomAsymetricKey()
	record := baseRecord(t, []crypto.Token{p1}, []crypto.Token{r1})

	d1, err := record.PromiseDigest()
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	d2, err := record.PromiseDigest()
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if d1 != d2 {
		t.Errorf("expected deterministic digest, got %v != %v", d1, d2)
	}
}

func TestMergeSignaturesUnionAndMismatch(t *testing.T) {
	k1, priv1 := crypto.RandomAsymetricKey()
	k2, _ := crypto.RandomAsymetricKey()

	prior := []Signature{{Type: Promise, Key: k1, Value: priv1.Sign([]byte("a"))}}
	incoming := []Signature{
		{Type: Promise, Key: k1, Value: prior[0].Value},
		{Type: Promise, Key: k2, Value: priv1.Sign([]byte("b"))},
	}

	merged, err := MergeSignatures(prior, incoming)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged signatures, got %d", len(merged))
	}

	mutated := []Signature{{Type: NoPromise, Key: k1, Value: priv1.Sign([]byte("different"))}}
	if _, err := MergeSignatures(prior, mutated); err != ErrSignatureMutated {
		t.Errorf("expected ErrSignatureMutated, got %v", err)
	}
}

func TestEvaluateRoleScenarioS1(t *testing.T) {
	p1, priv1 := crypto.RandomAsymetricKey()
	p2, priv2 := crypto.RandomAsymetricKey()
	record := baseRecord(t, []crypto.Token{p1, p2}, []crypto.Token{p1})
	verifier := directVerifier{}

	// P2's update: nobody has promised yet.
	state, err := EvaluateRole(record, p2, verifier)
	if err != nil {
		t.Fatalf("evaluate role for p2: %v", err)
	}
	if !state.OurPromiseNeeded {
		t.Fatalf("expected p2 to need to promise")
	}

	record.Promises = append(record.Promises, signPromise(t, record, p2, priv2, Promise))

	// P1's update: p1 still needs to promise.
	state, err = EvaluateRole(record, p1, verifier)
	if err != nil {
		t.Fatalf("evaluate role for p1 pre-promise: %v", err)
	}
	if !state.OurPromiseNeeded {
		t.Fatalf("expected p1 to need to promise")
	}

	record.Promises = append(record.Promises, signPromise(t, record, p1, priv1, Promise))

	state, err = EvaluateRole(record, p1, verifier)
	if err != nil {
		t.Fatalf("evaluate role for p1 post-promise: %v", err)
	}
	if !state.FullyPromised {
		t.Fatalf("expected fully promised")
	}
	if !state.OurCommitNeeded {
		t.Fatalf("expected p1 (the sole referee) to need to commit")
	}

	record.Commits = append(record.Commits, signCommit(t, record, p1, priv1, Commit))

	state, err = EvaluateRole(record, p1, verifier)
	if err != nil {
		t.Fatalf("evaluate role for p1 post-commit: %v", err)
	}
	if !state.FullyCommitted || !state.ConsensusCommitted {
		t.Fatalf("expected fully committed and consensus committed")
	}
}

func TestEvaluateRoleConsensusThreshold(t *testing.T) {
	p1, priv1 := crypto.RandomAsymetricKey()
	r1, priv1r := crypto.RandomAsymetricKey()
	r2, priv2r := crypto.RandomAsymetricKey()
	r3, _ := crypto.RandomAsymetricKey()

	record := baseRecord(t, []crypto.Token{p1}, []crypto.Token{r1, r2, r3})
	record.Promises = append(record.Promises, signPromise(t, record, p1, priv1, Promise))
	record.Commits = append(record.Commits, signCommit(t, record, r1, priv1r, Commit))

	state, err := EvaluateRole(record, r2, directVerifier{})
	if err != nil {
		t.Fatalf("evaluate role: %v", err)
	}
	if state.ConsensusCommitted {
		t.Fatalf("did not expect consensus with only 1 of 3 referee commits")
	}

	record.Commits = append(record.Commits, signCommit(t, record, r2, priv2r, Commit))
	state, err = EvaluateRole(record, r3, directVerifier{})
	if err != nil {
		t.Fatalf("evaluate role: %v", err)
	}
	if !state.ConsensusCommitted {
		t.Fatalf("expected consensus with 2 of 3 referee commits")
	}
	if state.FullyCommitted {
		t.Fatalf("did not expect full commitment with only 2 of 3 referees")
	}
}

func TestEvaluateRoleOutOfPhaseCommit(t *testing.T) {
	p1, _ := crypto.RandomAsymetricKey()
	p2, _ := crypto.RandomAsymetricKey()
	r1, priv1r := crypto.RandomAsymetricKey()

	record := baseRecord(t, []crypto.Token{p1, p2}, []crypto.Token{r1})
	record.Commits = append(record.Commits, signCommit(t, record, r1, priv1r, Commit))

	if _, err := EvaluateRole(record, p1, directVerifier{}); err != ErrOutOfPhaseCommit {
		t.Fatalf("expected ErrOutOfPhaseCommit, got %v", err)
	}
}

func TestEvaluateRoleBadSignature(t *testing.T) {
	p1, _ := crypto.RandomAsymetricKey()
	_, wrongPriv := crypto.RandomAsymetricKey()
	record := baseRecord(t, []crypto.Token{p1}, nil)
	record.Promises = append(record.Promises, signPromise(t, record, p1, wrongPriv, Promise))

	if _, err := EvaluateRole(record, p1, directVerifier{}); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestValidateUpdateFieldMismatch(t *testing.T) {
	p1, _ := crypto.RandomAsymetricKey()
	prior := baseRecord(t, []crypto.Token{p1}, nil)
	incoming := prior
	incoming.Payload = []byte("different payload")

	if err := ValidateUpdate(prior, incoming); !errors.Is(err, ErrFieldMismatch) {
		t.Fatalf("expected ErrFieldMismatch, got %v", err)
	}
}

func TestValidateNewTiming(t *testing.T) {
	p1, _ := crypto.RandomAsymetricKey()
	record := baseRecord(t, []crypto.Token{p1}, nil)
	record.PromisesDue = record.Start

	checker := DefaultEntropyChecker{Options: CodeOptions{MinDistinctBytes: 4}}
	timing := TimingOptions{MinPromiseTime: time.Minute}

	err := ValidateNew(record, checker, timing, time.Now().UnixMilli())
	if !errors.Is(err, ErrTemporalViolation) {
		t.Fatalf("expected ErrTemporalViolation, got %v", err)
	}
}

// sameSignatureSet compares two signature slices as sets, ignoring order:
// MergeSignatures is defined to preserve prior's order and append the rest,
// so two merges started from opposite sides are only expected to agree on
// membership, not on position.
func sameSignatureSet(a, b []Signature) bool {
	if len(a) != len(b) {
		return false
	}
	index := make(map[crypto.Token]Signature, len(a))
	for _, s := range a {
		index[s.Key] = s
	}
	for _, s := range b {
		other, ok := index[s.Key]
		if !ok || other.Type != s.Type || other.Value != s.Value {
			return false
		}
	}
	return true
}

// TestMergeRecordsCommutative exercises Property 2: merging record a as
// prior against b as incoming, or b as prior against a as incoming, must
// settle on the same signature set either way, since a real deployment has
// no way to guarantee which of two concurrent messages a node sees first.
func TestMergeRecordsCommutative(t *testing.T) {
	p1, priv1 := crypto.RandomAsymetricKey()
	p2, priv2 := crypto.RandomAsymetricKey()
	base := baseRecord(t, []crypto.Token{p1, p2}, nil)

	a := base
	a.Promises = []Signature{signPromise(t, base, p1, priv1, Promise)}

	b := base
	b.Promises = []Signature{signPromise(t, base, p2, priv2, Promise)}

	mergedAB, err := MergeRecords(&a, b)
	if err != nil {
		t.Fatalf("merge a<-b: %v", err)
	}
	mergedBA, err := MergeRecords(&b, a)
	if err != nil {
		t.Fatalf("merge b<-a: %v", err)
	}
	if !sameSignatureSet(mergedAB.Promises, mergedBA.Promises) {
		t.Fatalf("expected the same signature set regardless of merge direction, got %+v vs %+v", mergedAB.Promises, mergedBA.Promises)
	}
}

// TestEvaluateRoleScenarioS6CommitBindsPromiseOrder exercises S6: a commit's
// digest binds the exact order of Promises at signing time. Reordering the
// same set of promises after a commit exists must invalidate that commit,
// since a verifier recomputes the digest from whatever order it currently
// sees.
func TestEvaluateRoleScenarioS6CommitBindsPromiseOrder(t *testing.T) {
	p1, priv1 := crypto.RandomAsymetricKey()
	p2, priv2 := crypto.RandomAsymetricKey()
	r1, priv1r := crypto.RandomAsymetricKey()

	record := baseRecord(t, []crypto.Token{p1, p2}, []crypto.Token{r1})
	record.Promises = []Signature{
		signPromise(t, record, p1, priv1, Promise),
		signPromise(t, record, p2, priv2, Promise),
	}
	record.Commits = []Signature{signCommit(t, record, r1, priv1r, Commit)}

	if _, err := EvaluateRole(record, r1, directVerifier{}); err != nil {
		t.Fatalf("expected the commit to verify against its original promise order, got %v", err)
	}

	reordered := record
	reordered.Promises = []Signature{record.Promises[1], record.Promises[0]}
	if _, err := EvaluateRole(reordered, r1, directVerifier{}); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature once the promise order backing the commit digest changed, got %v", err)
	}
}

func TestWireRoundTrip(t *testing.T) {
	p1, priv1 := crypto.RandomAsymetricKey()
	r1, _ := crypto.RandomAsymetricKey()
	record := baseRecord(t, []crypto.Token{p1}, []crypto.Token{r1})
	record.Promises = append(record.Promises, signPromise(t, record, p1, priv1, Promise))

	data := record.Serialize()
	parsed := ParseTrxRecord(data)

	if !parsed.TransactionCode.Equal(record.TransactionCode) {
		t.Errorf("transaction code mismatch after round trip")
	}
	if len(parsed.Promises) != 1 || parsed.Promises[0].Type != Promise {
		t.Errorf("promise signature not preserved across wire round trip")
	}
	if len(parsed.Topology.Members) != 2 {
		t.Errorf("expected 2 members after round trip, got %d", len(parsed.Topology.Members))
	}
}

package protocol

import (
	"fmt"

	"github.com/meshpact/trustfabric/crypto"
)

// Verifier is the subset of the Signer capability the role evaluator needs:
// checking a signature against a digest under a given key. It is declared
// here, rather than imported from the participant package, so that
// protocol never depends on participant — participant depends on protocol,
// not the other way around.
type Verifier interface {
	Verify(key crypto.Token, digest string, value crypto.Signature) bool
}

// RecordState is what EvaluateRole computes about a merged record: what (if
// anything) this node still needs to sign, and how far the transaction has
// progressed.
type RecordState struct {
	OurPromiseNeeded   bool
	FullyPromised      bool
	OurCommitNeeded    bool
	ConsensusCommitted bool
	FullyCommitted     bool
}

// EvaluateRole computes this node's RecordState for a merged record. Any
// failure here is fatal to the update that produced record.
func EvaluateRole(record TrxRecord, ourKey crypto.Token, verifier Verifier) (RecordState, error) {
	participants := record.Topology.Participants()
	referees := record.Topology.Referees()

	if hasDuplicateKeys(record.Promises) {
		return RecordState{}, fmt.Errorf("%w: duplicate promise key", ErrDuplicateSignature)
	}
	for _, sig := range record.Promises {
		if !record.Topology.HasParticipant(sig.Key) {
			return RecordState{}, fmt.Errorf("%w: promise from non-participant", ErrUnknownSigner)
		}
	}

	// Each entry's digest binds its own declared SigType, so a promise and
	// a nopromise for the same record sign different digests — this is
	// what makes the sign negative-or-positive rather than reinterpretable.
	for _, sig := range record.Promises {
		digest, err := record.PromiseDigest(sig.Type.String())
		if err != nil {
			return RecordState{}, err
		}
		if !verifier.Verify(sig.Key, digest, sig.Value) {
			return RecordState{}, fmt.Errorf("%w: promise from %v", ErrBadSignature, sig.Key)
		}
	}

	ourPromiseNeeded := record.HasParticipant(ourKey) && !record.HasPromiseFrom(ourKey)

	if ourPromiseNeeded {
		if len(record.Commits) > 0 {
			return RecordState{}, ErrOutOfPhaseCommit
		}
		return RecordState{OurPromiseNeeded: true}, nil
	}

	fullyPromised := allPresent(participants, record.PromiseKeys())
	if !fullyPromised {
		if len(record.Commits) > 0 {
			return RecordState{}, ErrOutOfPhaseCommit
		}
		return RecordState{OurPromiseNeeded: false, FullyPromised: false}, nil
	}

	if hasDuplicateKeys(record.Commits) {
		return RecordState{}, fmt.Errorf("%w: duplicate commit key", ErrDuplicateSignature)
	}
	for _, sig := range record.Commits {
		if !record.Topology.HasReferee(sig.Key) {
			return RecordState{}, fmt.Errorf("%w: commit from non-referee", ErrUnknownSigner)
		}
	}

	for _, sig := range record.Commits {
		digest, err := record.CommitDigest(sig.Type.String())
		if err != nil {
			return RecordState{}, err
		}
		if !verifier.Verify(sig.Key, digest, sig.Value) {
			return RecordState{}, fmt.Errorf("%w: commit from %v", ErrBadSignature, sig.Key)
		}
	}

	ourCommitNeeded := record.Topology.HasReferee(ourKey) && !record.HasCommitFrom(ourKey)
	quorum := (len(referees) + 1) / 2

	return RecordState{
		OurPromiseNeeded:   false,
		FullyPromised:      true,
		OurCommitNeeded:    ourCommitNeeded,
		ConsensusCommitted: len(record.Commits) >= quorum,
		FullyCommitted:     len(record.Commits) == len(referees),
	}, nil
}

// HasParticipant mirrors Topology.HasParticipant on a TrxRecord for
// readability at call sites above.
func (r TrxRecord) HasParticipant(key crypto.Token) bool {
	return r.Topology.HasParticipant(key)
}

// allPresent reports whether every key in required also appears in have.
func allPresent(required, have []crypto.Token) bool {
	haveSet := make(map[crypto.Token]struct{}, len(have))
	for _, key := range have {
		haveSet[key] = struct{}{}
	}
	for _, key := range required {
		if _, ok := haveSet[key]; !ok {
			return false
		}
	}
	return true
}

package protocol

import "github.com/meshpact/trustfabric/crypto"

// MergeSignatures walks incoming in insertion order, keeping prior's entries
// first. For a key present in both: if (Type, Value) agree exactly, the
// entry is kept once; otherwise the merge fails with ErrSignatureMutated.
// Keys in prior not in incoming are retained; keys in incoming not in prior
// are appended after retained entries.
//
// Grounded in the teacher's Ballot.IncoporateVote/IncoporateCommit
// (consensus/bft/ballot.go): both walk a slice comparing an incoming entry
// against what is already recorded for a key. Ours fails hard on mismatch
// rather than zeroing a weight, because this protocol has no notion of
// slashing — a mismatch here is a protocol violation, not a tally
// adjustment.
func MergeSignatures(prior, incoming []Signature) ([]Signature, error) {
	merged := make([]Signature, len(prior))
	copy(merged, prior)

	for _, in := range incoming {
		found := false
		for _, existing := range merged {
			if existing.Key.Equal(in.Key) {
				found = true
				if existing.Type != in.Type || existing.Value != in.Value {
					return nil, ErrSignatureMutated
				}
				break
			}
		}
		if !found {
			merged = append(merged, in)
		}
	}
	return merged, nil
}

// hasDuplicateKeys reports whether any key appears more than once among
// sigs.
func hasDuplicateKeys(sigs []Signature) bool {
	keys := make(map[crypto.Token]struct{}, len(sigs))
	for _, s := range sigs {
		if _, ok := keys[s.Key]; ok {
			return true
		}
		keys[s.Key] = struct{}{}
	}
	return false
}

package protocol

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/meshpact/trustfabric/util"
)

// baseDigest concatenates the record's immutable fields plus additionalData
// in the exact field order the signing/verifying sides must agree on, then
// hashes the result. The byte layout is part of the signed contract and
// must never change shape between producer and verifier, so it is built by
// direct concatenation with util.Put* rather than a self-describing codec —
// the same reasoning the teacher applies to its action serializeSign
// methods.
func (r TrxRecord) baseDigest(additionalData []string) (string, error) {
	canonicalTopology, err := util.CanonicalJSON(r.Topology)
	if err != nil {
		return "", fmt.Errorf("%w: could not canonicalize topology: %v", ErrCapability, err)
	}

	var bytes []byte
	util.PutHash(r.TransactionCode, &bytes)
	util.PutHash(r.SessionCode, &bytes)
	util.PutLongByteArray(r.Payload, &bytes)
	util.PutLongByteArray(canonicalTopology, &bytes)
	util.PutString(strconv.FormatInt(r.Start, 10), &bytes)
	util.PutString(strconv.FormatInt(r.PromisesDue, 10), &bytes)
	util.PutString(strconv.FormatInt(r.CommitsDue, 10), &bytes)
	for _, extra := range additionalData {
		util.PutString(extra, &bytes)
	}

	sum := sha256.Sum256(bytes)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// PromiseDigest is the signing target for an entry in Promises. extras is
// typically empty when verifying an existing signature, and
// [sigType.String()] when this node is signing its own promise.
func (r TrxRecord) PromiseDigest(extras ...string) (string, error) {
	return r.baseDigest(extras)
}

// CommitDigest is the signing target for an entry in Commits. It binds the
// exact set and order of the record's Promises, so an out-of-order
// insertion into Promises after any Commit has been signed invalidates
// every existing commit signature.
func (r TrxRecord) CommitDigest(extras ...string) (string, error) {
	additional := make([]string, 0, len(r.Promises)+len(extras))
	for _, promise := range r.Promises {
		encoded, err := util.CanonicalJSON(promise)
		if err != nil {
			return "", fmt.Errorf("%w: could not canonicalize promise: %v", ErrCapability, err)
		}
		additional = append(additional, string(encoded))
	}
	additional = append(additional, extras...)
	return r.baseDigest(additional)
}

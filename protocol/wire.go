package protocol

import (
	"github.com/meshpact/trustfabric/topology"
	"github.com/meshpact/trustfabric/util"
)

func putSignature(sig Signature, data *[]byte) {
	util.PutByte(byte(int8(sig.Type)), data)
	util.PutToken(sig.Key, data)
	util.PutSignature(sig.Value, data)
}

func parseSignature(data []byte, position int) (Signature, int) {
	var sig Signature
	var rawType byte
	rawType, position = util.ParseByte(data, position)
	sig.Type = SigType(int8(rawType))
	sig.Key, position = util.ParseToken(data, position)
	sig.Value, position = util.ParseSignature(data, position)
	return sig, position
}

func putSignatures(sigs []Signature, data *[]byte) {
	util.PutUint32(uint32(len(sigs)), data)
	for _, sig := range sigs {
		putSignature(sig, data)
	}
}

func parseSignatures(data []byte, position int) ([]Signature, int) {
	var count uint32
	count, position = util.ParseUint32(data, position)
	sigs := make([]Signature, int(count))
	for n := range sigs {
		sigs[n], position = parseSignature(data, position)
	}
	return sigs, position
}

func putMember(m topology.Member, data *[]byte) {
	util.PutToken(m.Key, data)
	util.PutString(m.Address, data)
	util.PutByteArray(m.Handle, data)
	util.PutByte(byte(m.Roles), data)
}

func parseMember(data []byte, position int) (topology.Member, int) {
	var m topology.Member
	m.Key, position = util.ParseToken(data, position)
	m.Address, position = util.ParseString(data, position)
	m.Handle, position = util.ParseByteArray(data, position)
	var roles byte
	roles, position = util.ParseByte(data, position)
	m.Roles = topology.RoleSet(roles)
	return m, position
}

func putLink(l topology.Link, data *[]byte) {
	util.PutToken(l.SourceKey, data)
	util.PutToken(l.TargetKey, data)
	util.PutUint64(l.Nonce, data)
	util.PutByteArray(l.Terms, data)
}

func parseLink(data []byte, position int) (topology.Link, int) {
	var l topology.Link
	l.SourceKey, position = util.ParseToken(data, position)
	l.TargetKey, position = util.ParseToken(data, position)
	l.Nonce, position = util.ParseUint64(data, position)
	l.Terms, position = util.ParseByteArray(data, position)
	return l, position
}

func putTopology(t topology.Topology, data *[]byte) {
	util.PutUint32(uint32(len(t.Members)), data)
	for _, m := range t.Members {
		putMember(m, data)
	}
	util.PutUint32(uint32(len(t.Links)), data)
	for _, l := range t.Links {
		putLink(l, data)
	}
}

func parseTopology(data []byte, position int) (topology.Topology, int) {
	var t topology.Topology
	var memberCount, linkCount uint32
	memberCount, position = util.ParseUint32(data, position)
	t.Members = make([]topology.Member, int(memberCount))
	for n := range t.Members {
		t.Members[n], position = parseMember(data, position)
	}
	linkCount, position = util.ParseUint32(data, position)
	t.Links = make([]topology.Link, int(linkCount))
	for n := range t.Links {
		t.Links[n], position = parseLink(data, position)
	}
	return t, position
}

// Serialize renders the record into the binary wire format: the same
// concatenated-fields shape used throughout the teacher's action types,
// generalized here to the record's richer, variable-length structure.
func (r TrxRecord) Serialize() []byte {
	var data []byte
	util.PutHash(r.TransactionCode, &data)
	util.PutHash(r.SessionCode, &data)
	util.PutLongByteArray(r.Payload, &data)
	putTopology(r.Topology, &data)
	util.PutInt64(r.Start, &data)
	util.PutInt64(r.PromisesDue, &data)
	util.PutInt64(r.CommitsDue, &data)
	putSignatures(r.Promises, &data)
	putSignatures(r.Commits, &data)
	return data
}

// ParseTrxRecord parses bytes produced by TrxRecord.Serialize.
func ParseTrxRecord(data []byte) TrxRecord {
	var r TrxRecord
	position := 0
	r.TransactionCode, position = util.ParseHash(data, position)
	r.SessionCode, position = util.ParseHash(data, position)
	r.Payload, position = util.ParseLongByteArray(data, position)
	r.Topology, position = parseTopology(data, position)
	r.Start, position = util.ParseInt64(data, position)
	r.PromisesDue, position = util.ParseInt64(data, position)
	r.CommitsDue, position = util.ParseInt64(data, position)
	r.Promises, position = parseSignatures(data, position)
	r.Commits, _ = parseSignatures(data, position)
	return r
}

// Package store provides a durable, process-restart-surviving
// implementation of the participant.Storage capability, backed by papirus:
// a fixed-size papirus.HashStore indexes each transaction code's hash to an
// (offset, length) pointer into a variable-length blob log holding the
// record's serialized bytes.
//
// Grounded in the teacher's protocol/state.Wallet (the HashStore-over-
// BucketStore wiring and the found/not-found update callback shape) and
// middleware/social.BlockStore (the length-prefixed blob log with an
// in-memory offset index rebuilt by a linear scan on open).
package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/freehandle/papirus"
	"github.com/meshpact/trustfabric/crypto"
	"github.com/meshpact/trustfabric/protocol"
	"github.com/meshpact/trustfabric/util"
	"github.com/meshpact/trustfabric/util/solo"
)

// pointerItemSize is the fixed width of one hash-store item: the hash
// itself plus an 8-byte offset and an 8-byte length into the blob log.
const pointerItemSize = crypto.Size + 8 + 8

// pointerBitsForBucket sizes the hash store for a moderate number of
// concurrently in-flight transactions; a busier deployment can grow this.
const pointerBitsForBucket = 12

// recordLog is an append-only, length-prefixed blob log, one entry per
// serialized TrxRecord version ever written. Old versions are never
// reclaimed: a transaction's pointer always aims at its latest write, and
// the log only grows, the same tradeoff middleware/social.BlockStore makes.
type recordLog struct {
	mu    sync.Mutex
	store papirus.ByteStore
	size  int64
}

func newRecordLog(byteStore papirus.ByteStore) *recordLog {
	return &recordLog{store: byteStore, size: byteStore.Size()}
}

// append writes data length-prefixed at the current end of the log and
// returns the offset of its payload (past the length prefix) and its
// length, the pair the pointer index stores.
func (l *recordLog) append(data []byte) (offset, length int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var framed []byte
	util.PutUint64(uint64(len(data)), &framed)
	framed = append(framed, data...)
	payloadOffset := l.size + 8
	l.store.WriteAt(l.size, framed)
	l.size += int64(len(framed))
	return payloadOffset, int64(len(data))
}

// read returns the length bytes stored at offset, the payload location
// returned by append (and recorded verbatim in the pointer index, so the
// index's length is authoritative and the log's own prefix need not be
// re-read).
func (l *recordLog) read(offset, length int64) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.ReadAt(offset, length)
}

// setPointer is the papirus update callback for the transaction-pointer
// hash store: it always overwrites on a hit (a transaction's pointer only
// ever moves forward to a newer version) and inserts on a miss. There is no
// credit/debit arithmetic here, unlike the teacher's Wallet, since a
// pointer has no notion of partial update: param is always the full
// replacement value.
func setPointer(found bool, hash crypto.Hash, b *papirus.Bucket, item int64, param []byte) papirus.OperationResult {
	value := make([]byte, pointerItemSize)
	copy(value[:crypto.Size], hash[:])
	copy(value[crypto.Size:], param)
	b.WriteItem(item, value)
	if found {
		return papirus.OperationResult{Result: papirus.QueryResult{Ok: true, Data: value}}
	}
	return papirus.OperationResult{
		Added:  &papirus.Item{Bucket: b, Item: item},
		Result: papirus.QueryResult{Ok: true, Data: value},
	}
}

// pointerIndex wraps a papirus.HashStore mapping a transaction code's hash
// to where its latest serialized record sits in a recordLog.
type pointerIndex struct {
	hs *papirus.HashStore[crypto.Hash]
}

// newPointerIndex wires a papirus.HashStore over byteStore exactly as the
// teacher's NewMemoryWalletStore/NewFileWalletStore size their backing
// store: 56 bytes of header plus, per bucket, 6 items of pointerItemSize
// plus an 8-byte overflow pointer.
func newPointerIndex(name string, byteStore papirus.ByteStore, bitsForBucket int) *pointerIndex {
	bucketStore := papirus.NewBucketStore(pointerItemSize, 6, byteStore)
	hs := papirus.NewHashStore(name, bucketStore, bitsForBucket, setPointer)
	hs.Start()
	return &pointerIndex{hs: hs}
}

func pointerIndexBytes(bitsForBucket int) int64 {
	return 56 + int64(1<<uint(bitsForBucket))*(int64(pointerItemSize)*6+8)
}

func (p *pointerIndex) set(hash crypto.Hash, offset, length int64) {
	param := make([]byte, 16)
	binary.LittleEndian.PutUint64(param[:8], uint64(offset))
	binary.LittleEndian.PutUint64(param[8:], uint64(length))
	response := make(chan papirus.QueryResult)
	p.hs.Query(papirus.Query[crypto.Hash]{Hash: hash, Param: param, Response: response})
}

func (p *pointerIndex) get(hash crypto.Hash) (offset, length int64, ok bool) {
	response := make(chan papirus.QueryResult)
	found, data := p.hs.Query(papirus.Query[crypto.Hash]{Hash: hash, Param: make([]byte, 16), Response: response})
	if !found {
		return 0, 0, false
	}
	offset = int64(binary.LittleEndian.Uint64(data[crypto.Size : crypto.Size+8]))
	length = int64(binary.LittleEndian.Uint64(data[crypto.Size+8 : crypto.Size+16]))
	return offset, length, true
}

func (p *pointerIndex) close() {
	ok := make(chan bool)
	p.hs.Stop <- ok
	<-ok
}

// DurableStore is a papirus-backed participant.Storage: one pointerIndex
// and recordLog pair for this node's own transactions, a second pair for
// the last-known record received from each peer, and a sequential
// append-only solo.Writer sink for rejected records.
type DurableStore struct {
	own       *pointerIndex
	ownLog    *recordLog
	peer      *pointerIndex
	peerLog   *recordLog
	invalid   *solo.Writer
	pusher    func(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error
}

// peerHash folds a peer token and a transaction code into a single hash so
// the peer pointer index, keyed by crypto.Hash like the own-transaction
// index, can address a (peer, transactionCode) pair.
func peerHash(peer crypto.Token, code crypto.Hash) crypto.Hash {
	combined := make([]byte, 0, crypto.TokenSize+crypto.Size)
	combined = append(combined, peer[:]...)
	combined = append(combined, code[:]...)
	return crypto.Hasher(combined)
}

// NewMemoryDurableStore builds a DurableStore whose indexes and blob logs
// live only in process memory, mirroring the teacher's
// NewMemoryWalletStore. It has no invalid-record sink: LogInvalid discards
// what it is given. Useful for tests that want papirus's real codec and
// concurrency behavior without touching disk.
func NewMemoryDurableStore(pusher func(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error) *DurableStore {
	indexBytes := pointerIndexBytes(pointerBitsForBucket)
	return &DurableStore{
		own:     newPointerIndex("own", papirus.NewMemoryStore(indexBytes), pointerBitsForBucket),
		ownLog:  newRecordLog(papirus.NewMemoryStore(0)),
		peer:    newPointerIndex("peer", papirus.NewMemoryStore(indexBytes), pointerBitsForBucket),
		peerLog: newRecordLog(papirus.NewMemoryStore(0)),
		pusher:  pusher,
	}
}

// NewFileDurableStore builds a DurableStore persisted under dir: an
// own-transactions blob log, a peer-records blob log, and an invalid-record
// sequential log, following the teacher's NewFileWalletStore and
// util/solo.NewWriter conventions.
func NewFileDurableStore(dir string, pusher func(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error) (*DurableStore, error) {
	indexBytes := pointerIndexBytes(pointerBitsForBucket)
	ownLog := newRecordLog(papirus.NewFileStore(filepath.Join(dir, "own.dat"), 0))
	peerLog := newRecordLog(papirus.NewFileStore(filepath.Join(dir, "peer.dat"), 0))
	invalid, err := solo.NewWriter(dir, "invalid", 64<<20, 4096, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open invalid-record log: %v", err)
	}
	return &DurableStore{
		own:     newPointerIndex("own", papirus.NewFileStore(filepath.Join(dir, "own.idx"), indexBytes), pointerBitsForBucket),
		ownLog:  ownLog,
		peer:    newPointerIndex("peer", papirus.NewFileStore(filepath.Join(dir, "peer.idx"), indexBytes), pointerBitsForBucket),
		peerLog: peerLog,
		invalid: invalid,
		pusher:  pusher,
	}, nil
}

func (d *DurableStore) GetTransaction(ctx context.Context, code crypto.Hash) (*protocol.TrxRecord, error) {
	offset, length, ok := d.own.get(code)
	if !ok {
		return nil, nil
	}
	record := protocol.ParseTrxRecord(d.ownLog.read(offset, length))
	return &record, nil
}

func (d *DurableStore) SetTransaction(ctx context.Context, record protocol.TrxRecord) error {
	offset, length := d.ownLog.append(record.Serialize())
	d.own.set(record.TransactionCode, offset, length)
	return nil
}

func (d *DurableStore) SetPeerRecord(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error {
	offset, length := d.peerLog.append(record.Serialize())
	d.peer.set(peerHash(peer, record.TransactionCode), offset, length)
	return nil
}

func (d *DurableStore) GetPeerRecord(ctx context.Context, peer crypto.Token, code crypto.Hash) (*protocol.TrxRecord, error) {
	offset, length, ok := d.peer.get(peerHash(peer, code))
	if !ok {
		return nil, nil
	}
	record := protocol.ParseTrxRecord(d.peerLog.read(offset, length))
	return &record, nil
}

func (d *DurableStore) PushPeerRecord(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error {
	if d.pusher == nil {
		return nil
	}
	if err := d.pusher(ctx, peer, record); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrCapability, err)
	}
	return nil
}

// LogInvalid appends a length-prefixed (cause, record) frame to the invalid
// sink, in the same frame shape recordLog.append uses, so TailInvalid can
// split the raw byte stream a solo.Reader hands back into discrete entries
// again.
func (d *DurableStore) LogInvalid(ctx context.Context, record protocol.TrxRecord, cause error) error {
	if d.invalid == nil {
		return nil
	}
	var entry []byte
	util.PutString(cause.Error(), &entry)
	util.PutLongByteArray(record.Serialize(), &entry)
	var framed []byte
	util.PutUint64(uint64(len(entry)), &framed)
	framed = append(framed, entry...)
	_, err := d.invalid.Write(framed)
	return err
}

// Close stops the background hash-store goroutines and closes the invalid
// log file, if any.
func (d *DurableStore) Close() error {
	d.own.close()
	d.peer.close()
	if d.invalid != nil {
		return d.invalid.Close()
	}
	return nil
}

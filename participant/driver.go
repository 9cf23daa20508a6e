package participant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meshpact/trustfabric/crypto"
	"github.com/meshpact/trustfabric/protocol"
)

// Driver is the per-node transaction participant state machine: the single
// entry point that receives a proposed record, validates and merges it
// against prior state, works out what (if anything) this node must now
// sign, and fans the result out to reachable peers.
//
// Grounded in the teacher's consensus/swell.Node.RunEpoch for the overall
// "receive, validate, locally decide, broadcast" shape, and in
// socket.Gossip.Broadcast/BroadcastExcept for the parallel fan-out-and-
// await-all push semantics — plain sync.WaitGroup, no errgroup, matching
// the teacher's preference for hand-rolled concurrency.
type Driver struct {
	Signer   Signer
	Storage  Storage
	Decider  Decider
	Config   Config
	Checker  protocol.EntropyChecker
	Now      func() int64
}

// NewDriver builds a Driver with the given capabilities. Now defaults to
// the wall clock; tests may override it.
func NewDriver(signer Signer, storage Storage, decider Decider, config Config) *Driver {
	return &Driver{
		Signer:  signer,
		Storage: storage,
		Decider: decider,
		Config:  config,
		Checker: protocol.DefaultEntropyChecker{Options: config.CodeOptions},
		Now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// Update is the driver's single entry point. fromKey, if non-nil, is the
// peer this record was received from.
func (d *Driver) Update(ctx context.Context, record protocol.TrxRecord, fromKey *crypto.Token) (protocol.TrxRecord, error) {
	if fromKey != nil {
		if err := d.Storage.SetPeerRecord(ctx, *fromKey, record); err != nil {
			return protocol.TrxRecord{}, fmt.Errorf("%w: %v", protocol.ErrCapability, err)
		}
	}

	prior, err := d.Storage.GetTransaction(ctx, record.TransactionCode)
	if err != nil {
		return protocol.TrxRecord{}, fmt.Errorf("%w: %v", protocol.ErrCapability, err)
	}

	merged, err := d.validateAndMerge(prior, record)
	if err != nil {
		d.Storage.LogInvalid(ctx, record, err)
		return protocol.TrxRecord{}, err
	}

	ourKey, err := d.Signer.GetOurKey(merged.SessionCode)
	if err != nil {
		return protocol.TrxRecord{}, fmt.Errorf("%w: %v", protocol.ErrCapability, err)
	}

	state, err := protocol.EvaluateRole(merged, ourKey, d.Signer)
	if err != nil {
		d.Storage.LogInvalid(ctx, merged, err)
		return protocol.TrxRecord{}, err
	}
	slog.Info("participant: evaluated record", "transaction", crypto.EncodeHash(merged.TransactionCode), "phase", protocol.PhaseOf(state).String())

	final := merged
	now := d.Now()

	if state.OurPromiseNeeded {
		final, err = d.signPromise(final, ourKey, now)
		if err != nil {
			return protocol.TrxRecord{}, err
		}
		// Our promise may have been the last one missing; re-evaluate so a
		// node that is also a referee signs its commit in the same call.
		state, err = protocol.EvaluateRole(final, ourKey, d.Signer)
		if err != nil {
			return protocol.TrxRecord{}, err
		}
	}
	if state.OurCommitNeeded {
		final, err = d.signCommit(final, ourKey, now)
		if err != nil {
			return protocol.TrxRecord{}, err
		}
	}

	if err := d.Storage.SetTransaction(ctx, final); err != nil {
		return protocol.TrxRecord{}, fmt.Errorf("%w: %v", protocol.ErrCapability, err)
	}

	if err := d.pushToReachablePeers(ctx, final, ourKey); err != nil {
		return final, err
	}
	return final, nil
}

// validateAndMerge runs validateNew when there is no prior record, then
// merges (which is a no-op structural-equality check plus signature union
// when prior is present).
func (d *Driver) validateAndMerge(prior *protocol.TrxRecord, incoming protocol.TrxRecord) (protocol.TrxRecord, error) {
	if prior == nil {
		if err := protocol.ValidateNew(incoming, d.Checker, d.Config.TimingOptions, d.Now()); err != nil {
			return protocol.TrxRecord{}, err
		}
		return incoming, nil
	}
	return protocol.MergeRecords(prior, incoming)
}

func (d *Driver) signPromise(record protocol.TrxRecord, ourKey crypto.Token, now int64) (protocol.TrxRecord, error) {
	deadlinePassed := now >= record.PromisesDue
	deadlineSatisfied := deadlinePassed == d.Config.TimingOptions.PromiseDeadlineMustHavePassed
	approved := d.Decider.ShouldPromise(record) && deadlineSatisfied
	sigType := protocol.NoPromise
	if approved {
		sigType = protocol.Promise
	}
	digest, err := record.PromiseDigest(sigType.String())
	if err != nil {
		return protocol.TrxRecord{}, err
	}
	signature, err := d.Signer.Sign(digest)
	if err != nil {
		return protocol.TrxRecord{}, fmt.Errorf("%w: %v", protocol.ErrCapability, err)
	}
	next := record.Clone()
	next.Promises = append(next.Promises, protocol.Signature{Type: sigType, Key: ourKey, Value: signature})
	return next, nil
}

func (d *Driver) signCommit(record protocol.TrxRecord, ourKey crypto.Token, now int64) (protocol.TrxRecord, error) {
	deadlinePassed := now >= record.CommitsDue
	deadlineSatisfied := deadlinePassed == d.Config.TimingOptions.CommitDeadlineMustHavePassed
	approved := d.Decider.ShouldCommit(record) && deadlineSatisfied
	sigType := protocol.NoCommit
	if approved {
		sigType = protocol.Commit
	}
	digest, err := record.CommitDigest(sigType.String())
	if err != nil {
		return protocol.TrxRecord{}, err
	}
	signature, err := d.Signer.Sign(digest)
	if err != nil {
		return protocol.TrxRecord{}, fmt.Errorf("%w: %v", protocol.ErrCapability, err)
	}
	next := record.Clone()
	next.Commits = append(next.Commits, protocol.Signature{Type: sigType, Key: ourKey, Value: signature})
	return next, nil
}

// isStale reports whether known is missing or has fewer signatures in
// either collection than current.
func isStale(known *protocol.TrxRecord, current protocol.TrxRecord) bool {
	if known == nil {
		return true
	}
	return len(known.Promises) < len(current.Promises) || len(known.Commits) < len(current.Commits)
}

func (d *Driver) pushToReachablePeers(ctx context.Context, record protocol.TrxRecord, ourKey crypto.Token) error {
	peers := record.Topology.ReachablePeers(ourKey)

	var wg sync.WaitGroup
	errs := make([]error, len(peers))
	for i, peer := range peers {
		known, err := d.Storage.GetPeerRecord(ctx, peer, record.TransactionCode)
		if err != nil {
			errs[i] = fmt.Errorf("%w: %v", protocol.ErrCapability, err)
			continue
		}
		if !isStale(known, record) {
			continue
		}
		wg.Add(1)
		go func(i int, peer crypto.Token) {
			defer wg.Done()
			if err := d.Storage.PushPeerRecord(ctx, peer, record); err != nil {
				errs[i] = err
				return
			}
			d.Storage.SetPeerRecord(ctx, peer, record)
		}(i, peer)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

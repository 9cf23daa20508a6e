package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/meshpact/trustfabric/crypto"
	"github.com/meshpact/trustfabric/participant"
	"github.com/meshpact/trustfabric/protocol"
	"github.com/meshpact/trustfabric/store"
	"github.com/meshpact/trustfabric/topology"
	"github.com/meshpact/trustfabric/transport"
	"github.com/meshpact/trustfabric/util"
)

// run wires the demo node end to end: it loads a config and topology, builds
// the capability set the driver needs, optionally opens a TCP listener for
// incoming pushes, and blocks until interrupted.
//
// Grounded in the teacher's cmd/blow/main.go: LoadConfig, then build the
// concrete transport/consensus wiring from the loaded values, then run
// until canceled.
func run(configPath string) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := participant.LoadConfig[RunConfig](configPath)
	if err != nil {
		return err
	}
	util.PrintJson(cfg)
	key, err := loadKey(cfg.KeyPath)
	if err != nil {
		return err
	}
	top, err := loadTopology(cfg.TopologyPath)
	if err != nil {
		return err
	}
	ourKey := key.PublicKey()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pusher := newTopologyPusher(*top, key)

	var storage participant.Storage
	if cfg.StoragePath != "" {
		if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
			return err
		}
		durable, err := store.NewFileDurableStore(cfg.StoragePath, pusher)
		if err != nil {
			return err
		}
		defer durable.Close()
		storage = durable
	} else {
		storage = participant.NewMemoryStorage(pusher)
	}

	var decider participant.Decider = participant.AlwaysApprove{}
	if !cfg.AlwaysApprove {
		decider = participant.NeverApprove{}
	}

	signer := participant.NewMemorySigner(key)
	driver := participant.NewDriver(signer, storage, decider, cfg.Config)

	if cfg.ListenAddress != "" {
		validator := transport.NewValidConnections(memberKeys(*top))
		server, err := transport.Listen(cfg.ListenAddress, key, validator)
		if err != nil {
			return err
		}
		defer server.Shutdown()
		go serviceConnections(ctx, server, driver)
		slog.Info("fabricnode: listening", "address", cfg.ListenAddress, "token", ourKey.String())
	} else {
		slog.Info("fabricnode: running with no listener", "token", ourKey.String())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	slog.Info("fabricnode: shutting down")
	return nil
}

// memberKeys collects every member key in top, the membership a listener
// validates incoming connections against.
func memberKeys(top topology.Topology) []crypto.Token {
	keys := make([]crypto.Token, len(top.Members))
	for i, m := range top.Members {
		keys[i] = m.Key
	}
	return keys
}

// newTopologyPusher builds a participant.Storage-compatible push function
// that resolves a peer token to its address in top and delivers the record
// over a fresh transport.Connection, the adapter between the driver's
// single-peer typed capability and transport's dial-per-push design.
func newTopologyPusher(top topology.Topology, credentials crypto.PrivateKey) func(context.Context, crypto.Token, protocol.TrxRecord) error {
	return func(ctx context.Context, peer crypto.Token, record protocol.TrxRecord) error {
		member, ok := top.MemberByKey(peer)
		if !ok || member.Address == "" {
			return nil
		}
		conn, err := transport.Dial(member.Address, credentials, peer)
		if err != nil {
			return err
		}
		defer conn.Shutdown()
		return conn.Send(record.Serialize())
	}
}

// serviceConnections drains server.Accepted for the life of ctx, spawning a
// read loop per connection that feeds every parsed record into driver.
func serviceConnections(ctx context.Context, server *transport.Server, driver *participant.Driver) {
	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-server.Accepted:
			go serviceConnection(ctx, conn, driver)
		}
	}
}

func serviceConnection(ctx context.Context, conn *transport.Connection, driver *participant.Driver) {
	for {
		msg, err := conn.Read()
		if err != nil {
			slog.Info("fabricnode: connection closed", "peer", conn.Token.String(), "error", err)
			return
		}
		record := protocol.ParseTrxRecord(msg)
		from := conn.Token
		if _, err := driver.Update(ctx, record, &from); err != nil {
			slog.Warn("fabricnode: rejected incoming record", "peer", from.String(), "error", err)
		}
	}
}

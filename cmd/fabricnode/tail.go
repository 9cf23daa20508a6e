package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshpact/trustfabric/crypto"
	"github.com/meshpact/trustfabric/store"
	"github.com/meshpact/trustfabric/util"
)

const invalidPollInterval = 2 * time.Second

// tailInvalid streams every entry written to a storage directory's
// invalid-record sink, matching the file-tailing behaviour of the teacher's
// util/solo.Reader, and prints it to stdout until interrupted. If os.Args
// carries a fourth argument, it is decoded as a transaction hash and used to
// filter the stream down to that one transaction.
func tailInvalid(dir string) error {
	var filter *crypto.Hash
	if len(os.Args) > 3 {
		h := crypto.DecodeHash(os.Args[3])
		filter = &h
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	entries := store.TailInvalid(ctx, dir, invalidPollInterval)
	for entry := range entries {
		if filter != nil && !entry.Record.TransactionCode.Equal(*filter) {
			continue
		}
		fmt.Println(dumpInvalidRecord(entry))
	}
	return nil
}

// dumpInvalidRecord renders one InvalidRecord as a flat JSON line, the same
// low-ceremony field-by-field rendering the teacher's wire types use for
// human-facing log and debug output.
func dumpInvalidRecord(entry store.InvalidRecord) string {
	var line util.JSONBuilder
	line.PutTime("at", time.Now().UTC())
	line.PutString("transaction", crypto.EncodeHash(entry.Record.TransactionCode))
	line.PutString("cause", entry.Cause)
	line.PutUint64("promisesDue", uint64(entry.Record.PromisesDue))
	line.PutUint64("commitsDue", uint64(entry.Record.CommitsDue))
	line.PutBase64("payload", entry.Record.Payload)
	return line.ToString()
}

package store

import (
	"context"
	"time"

	"github.com/meshpact/trustfabric/protocol"
	"github.com/meshpact/trustfabric/util"
	"github.com/meshpact/trustfabric/util/solo"
)

// tailChunkSize matches the chunk size the teacher's middleware/simple block
// reader uses when tailing a solo-backed log.
const tailChunkSize = 1024 * 1024

// InvalidRecord is one entry read back from the invalid-record sink: the
// rejection cause exactly as DurableStore.LogInvalid recorded it, and the
// rejected record itself.
type InvalidRecord struct {
	Cause  string
	Record protocol.TrxRecord
}

// TailInvalid follows the invalid-record sink under dir, the same files
// DurableStore.LogInvalid writes, replaying every entry already on disk and
// then every new one as it is appended, until ctx is cancelled. This lets an
// operator watch rejected records arrive live without stopping the node that
// is writing them, the same read-then-follow shape the teacher's
// middleware/simple.NewBlockReader gets from solo.Reader.
func TailInvalid(ctx context.Context, dir string, pollInterval time.Duration) <-chan InvalidRecord {
	reader := solo.NewReader(dir, "invalid", tailChunkSize, pollInterval)
	chunks := make(chan []byte, 1)
	go func() {
		if err := reader.Read(ctx, chunks); err != nil {
			return
		}
	}()

	out := make(chan InvalidRecord, 1)
	go func() {
		defer close(out)
		var buffer []byte
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-chunks:
				if !ok {
					return
				}
				buffer = append(buffer, chunk...)
				buffer = drainInvalidFrames(buffer, out)
			}
		}
	}()
	return out
}

// drainInvalidFrames consumes every complete length-prefixed frame at the
// front of buffer, emitting an InvalidRecord for each, and returns the
// remaining unconsumed tail.
func drainInvalidFrames(buffer []byte, out chan<- InvalidRecord) []byte {
	for {
		if len(buffer) < 8 {
			return buffer
		}
		frameLength, _ := util.ParseUint64(buffer, 0)
		total := 8 + int(frameLength)
		if len(buffer) < total {
			return buffer
		}
		entry := buffer[8:total]
		cause, position := util.ParseString(entry, 0)
		recordBytes, _ := util.ParseLongByteArray(entry, position)
		out <- InvalidRecord{Cause: cause, Record: protocol.ParseTrxRecord(recordBytes)}
		buffer = buffer[total:]
	}
}

package daemon

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/framegrace/texelprobe/internal/shmem"
	"github.com/framegrace/texelprobe/protocol"
	"github.com/framegrace/texelprobe/screen"
	"github.com/framegrace/texelprobe/waitfor"
)

const maxReadAttempts = 1000

var ErrNotPublished = errors.New("daemon: no snapshot published yet")

// Frame is one consistent read of the shared snapshot.
type Frame struct {
	Snapshot screen.Snapshot
	Sequence uint64
	Exited   bool
}

// Reader maps a publisher's shared memory file read-only.
type Reader struct {
	mu     sync.Mutex
	path   string
	region *shmem.Region
	last   Frame
}

func OpenReader(path string) (*Reader, error) {
	region, err := shmem.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{path: path, region: region}, nil
}

// Read returns the latest complete snapshot. It retries while the writer is
// mid-update and remaps when the grid has outgrown the current mapping.
func (r *Reader) Read() (Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head := make([]byte, protocol.SnapshotHeaderSize)
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		before, err := r.region.LoadUint64(protocol.SequenceOffset)
		if err != nil {
			return Frame{}, err
		}
		if before == 0 {
			return Frame{}, ErrNotPublished
		}
		if before&1 == 1 {
			runtime.Gosched()
			continue
		}
		if err := r.region.ReadAt(head, 0); err != nil {
			return Frame{}, err
		}
		h, err := protocol.ParseSnapshotHeader(head)
		if err != nil {
			if r.changed(before) {
				continue
			}
			return Frame{}, err
		}
		if h.RegionEnd() > r.region.Size() {
			if err := r.remap(); err != nil {
				return Frame{}, err
			}
			continue
		}
		buf := make([]byte, h.RegionEnd())
		if err := r.region.ReadAt(buf, 0); err != nil {
			return Frame{}, err
		}
		if r.changed(before) {
			continue
		}
		snap, seq, err := protocol.UnmarshalSnapshot(buf)
		if err != nil {
			return Frame{}, err
		}
		r.last = Frame{Snapshot: snap, Sequence: seq, Exited: h.Exited()}
		return r.last, nil
	}
	return Frame{}, fmt.Errorf("%w after %d attempts", protocol.ErrTornRead, maxReadAttempts)
}

func (r *Reader) changed(before uint64) bool {
	after, err := r.region.LoadUint64(protocol.SequenceOffset)
	return err != nil || after != before
}

func (r *Reader) remap() error {
	region, err := shmem.Open(r.path)
	if err != nil {
		return err
	}
	debugLog.Printf("daemon: reader remapped %s: %d -> %d bytes", r.path, r.region.Size(), region.Size())
	_ = r.region.Close()
	r.region = region
	return nil
}

// Snapshot is Read without the frame metadata.
func (r *Reader) Snapshot() (screen.Snapshot, error) {
	f, err := r.Read()
	return f.Snapshot, err
}

// Source adapts the reader for the wait engine. A failed read reports the
// last good snapshot; the exited flag comes from the publisher.
func (r *Reader) Source() waitfor.Source[screen.Snapshot] {
	return waitfor.SourceFunc[screen.Snapshot](func() (screen.Snapshot, bool) {
		f, err := r.Read()
		if err != nil {
			debugLog.Printf("daemon: read %s: %v", r.path, err)
			r.mu.Lock()
			f = r.last
			r.mu.Unlock()
		}
		return f.Snapshot, f.Exited
	})
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.region.Close()
}

package daemon

import (
	"sync"

	"github.com/framegrace/texelprobe/internal/shmem"
	"github.com/framegrace/texelprobe/protocol"
	"github.com/framegrace/texelprobe/screen"
)

// Publisher writes snapshots into a shared memory file guarded by the
// header's sequence word.
type Publisher struct {
	mu     sync.Mutex
	region *shmem.Region
	seq    uint64
}

// NewPublisher creates the shared memory file at path sized for a
// cols x rows grid. Nothing is readable until the first Publish.
func NewPublisher(path string, cols, rows int) (*Publisher, error) {
	region, err := shmem.Create(path, protocol.SnapshotRegionSize(cols, rows))
	if err != nil {
		return nil, err
	}
	return &Publisher{region: region}, nil
}

func (p *Publisher) Path() string { return p.region.Path() }

// Sequence returns the last published sequence; 0 before the first publish.
func (p *Publisher) Sequence() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// Publish writes snap and returns its (even) sequence number. The sequence
// is odd for the duration of the write.
func (p *Publisher) Publish(snap screen.Snapshot, flags uint16) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.region.Grow(protocol.SnapshotRegionSize(int(snap.Width), int(snap.Height))); err != nil {
		return p.seq, err
	}
	writing := p.seq + 1
	if err := p.region.StoreUint64(protocol.SequenceOffset, writing); err != nil {
		return p.seq, err
	}
	buf := protocol.MarshalSnapshotFlags(snap, writing, flags)
	if err := p.region.WriteAt(buf, 0); err != nil {
		return p.seq, err
	}
	p.seq = writing + 1
	if err := p.region.StoreUint64(protocol.SequenceOffset, p.seq); err != nil {
		return p.seq, err
	}
	return p.seq, nil
}

// Close unmaps and removes the shared memory file.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.region.Close()
}

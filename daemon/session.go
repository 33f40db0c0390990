package daemon

import (
	"crypto/rand"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/framegrace/texelprobe/protocol"
	"github.com/framegrace/texelprobe/screen"
)

var (
	ErrSessionClosed = errors.New("daemon: session closed")
	ErrProcessExited = errors.New("daemon: process exited")
)

// Process is the child a session drives. *ptyproc.Process satisfies it.
type Process interface {
	io.ReadWriter
	Resize(cols, rows int) error
	Running() bool
	Close() error
}

// PublishObserver is told about every published snapshot.
type PublishObserver interface {
	ObservePublish(session *Session, sequence uint64, duration time.Duration)
}

// Session owns one process, the screen fed by its output, and the publisher
// exposing that screen to readers.
type Session struct {
	id       [16]byte
	proc     Process
	pub      *Publisher
	observer PublishObserver

	mu     sync.Mutex
	screen *screen.Screen
	exited bool
	closed bool

	started   bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wires proc's output into scr and publishes through pub.
// Call Start to begin pumping.
func NewSession(proc Process, scr *screen.Screen, pub *Publisher) (*Session, error) {
	var id [16]byte
	if _, err := rand.Read(id[:]); err != nil {
		return nil, err
	}
	return &Session{id: id, proc: proc, pub: pub, screen: scr, done: make(chan struct{})}, nil
}

func (s *Session) ID() [16]byte { return s.id }

// SetObserver registers a publish observer; call before Start.
func (s *Session) SetObserver(o PublishObserver) { s.observer = o }

// Start publishes the initial screen and launches the output pump.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	_, err := s.publishLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	go s.pump()
	return nil
}

func (s *Session) pump() {
	defer close(s.done)
	buf := make([]byte, 32*1024)
	for {
		n, err := s.proc.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.screen.Feed(buf[:n])
			if _, perr := s.publishLocked(); perr != nil {
				log.Printf("daemon: publish failed: %v", perr)
			}
			s.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				debugLog.Printf("daemon: process read: %v", err)
			}
			s.mu.Lock()
			s.exited = true
			if _, perr := s.publishLocked(); perr != nil {
				log.Printf("daemon: final publish failed: %v", perr)
			}
			s.mu.Unlock()
			return
		}
	}
}

func (s *Session) publishLocked() (uint64, error) {
	start := time.Now()
	var flags uint16
	if s.exited {
		flags |= protocol.SnapshotFlagExited
	}
	seq, err := s.pub.Publish(s.screen.Snapshot(), flags)
	if err == nil && s.observer != nil {
		s.observer.ObservePublish(s, seq, time.Since(start))
	}
	return seq, err
}

// Input writes data to the process.
func (s *Session) Input(data []byte) error {
	s.mu.Lock()
	closed, exited := s.closed, s.exited
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if exited || !s.proc.Running() {
		return ErrProcessExited
	}
	_, err := s.proc.Write(data)
	return err
}

// Resize resizes the screen and the process, then republishes.
func (s *Session) Resize(cols, rows int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	if err := s.screen.Resize(cols, rows); err != nil {
		return 0, err
	}
	if !s.exited {
		if err := s.proc.Resize(cols, rows); err != nil {
			log.Printf("daemon: process resize %dx%d: %v", cols, rows, err)
		}
	}
	return s.publishLocked()
}

// Refresh republishes the current screen.
func (s *Session) Refresh() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	return s.publishLocked()
}

// Snapshot copies the current screen.
func (s *Session) Snapshot() screen.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen.Snapshot()
}

// Title returns the window title set by the process.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen.Title()
}

func (s *Session) Sequence() uint64 { return s.pub.Sequence() }

// Exited reports whether the process output has ended.
func (s *Session) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// Done is closed when the pump stops.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the process and waits for the pump to drain.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.proc.Close()
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			select {
			case <-s.done:
			case <-time.After(2 * time.Second):
				log.Printf("daemon: session %x pump did not stop", s.id[:4])
			}
		}
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return err
}

package daemon

import (
	"context"
	"log"
	"net"
	"os"
	"sync"
)

// Server listens on a Unix domain socket and applies control messages to
// its session.
type Server struct {
	addr     string
	session  *Session
	store    *SnapshotStore
	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	shutdown     chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
}

func NewServer(addr string, session *Session) *Server {
	return &Server{
		addr:     addr,
		session:  session,
		quit:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
		shutdown: make(chan struct{}),
	}
}

// SetSnapshotStore makes Stop persist the final screen.
func (s *Server) SetSnapshotStore(store *SnapshotStore) { s.store = store }

func (s *Server) Addr() string { return s.addr }

func (s *Server) Session() *Session { return s.session }

func (s *Server) Start() error {
	if err := os.RemoveAll(s.addr); err != nil {
		return err
	}
	l, err := net.Listen("unix", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.wg.Add(1)
	go s.acceptLoop()
	log.Printf("daemon: listening on %s", s.addr)
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			debugLog.Printf("daemon: accept: %v", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, c)
				s.mu.Unlock()
				c.Close()
			}()
			if err := newConnection(c, s).serve(); err != nil {
				debugLog.Printf("daemon: connection closed: %v", err)
			}
		}(conn)
	}
}

// ShutdownRequested is closed when a client sends Shutdown.
func (s *Server) ShutdownRequested() <-chan struct{} { return s.shutdown }

func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// Stop closes the listener and every connection, then waits for handlers
// to finish or ctx to end.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		if s.store != nil && s.session != nil {
			if err := s.store.Save(s.session.Snapshot(), s.session.Title()); err != nil {
				log.Printf("daemon: save snapshot: %v", err)
			}
		}
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	_ = os.Remove(s.addr)
	return nil
}

package daemon

import (
	"bytes"
	"context"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framegrace/texelprobe/protocol"
	"github.com/framegrace/texelprobe/screen"
	"github.com/framegrace/texelprobe/waitfor"
)

// fakeProcess is a pipe-backed Process. With echo set, input is written
// back as output the way a cooked tty would.
type fakeProcess struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	echo bool

	mu     sync.Mutex
	input  bytes.Buffer
	cols   int
	rows   int
	exited atomic.Bool
}

func newFakeProcess(echo bool) *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{r: r, w: w, echo: echo}
}

func (f *fakeProcess) Read(p []byte) (int, error) { return f.r.Read(p) }

func (f *fakeProcess) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.input.Write(p)
	f.mu.Unlock()
	if f.echo {
		return f.w.Write(p)
	}
	return len(p), nil
}

func (f *fakeProcess) emit(s string) {
	_, _ = f.w.Write([]byte(s))
}

func (f *fakeProcess) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cols, f.rows = cols, rows
	return nil
}

func (f *fakeProcess) size() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cols, f.rows
}

func (f *fakeProcess) received() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.String()
}

func (f *fakeProcess) Running() bool { return !f.exited.Load() }

func (f *fakeProcess) Close() error {
	f.exited.Store(true)
	return f.w.Close()
}

type testDaemon struct {
	server *Server
	proc   *fakeProcess
	reader *Reader
	addr   string
	dir    string
}

func newTestDaemon(t *testing.T, cols, rows int) *testDaemon {
	t.Helper()
	dir := t.TempDir()
	scr, err := screen.New(cols, rows)
	require.NoError(t, err)
	pub, err := NewPublisher(filepath.Join(dir, "screen.shm"), cols, rows)
	require.NoError(t, err)

	proc := newFakeProcess(true)
	session, err := NewSession(proc, scr, pub)
	require.NoError(t, err)
	require.NoError(t, session.Start())

	reader, err := OpenReader(pub.Path())
	require.NoError(t, err)

	addr := filepath.Join(dir, "d.sock")
	server := NewServer(addr, session)
	require.NoError(t, server.Start())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
		_ = session.Close()
		_ = reader.Close()
		_ = pub.Close()
	})
	return &testDaemon{server: server, proc: proc, reader: reader, addr: addr, dir: dir}
}

func (d *testDaemon) waitText(t *testing.T, text string) screen.Snapshot {
	t.Helper()
	out, err := waitfor.WaitFor(context.Background(), d.reader.Source(),
		waitfor.Cond("text "+text, func(s screen.Snapshot) bool { return strings.Contains(s.Contents(), text) }),
		waitfor.Options[screen.Snapshot]{Timeout: 2 * time.Second, PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	return out.Value
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPublisherReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.shm")
	pub, err := NewPublisher(path, 10, 3)
	require.NoError(t, err)
	defer pub.Close()

	reader, err := OpenReader(path)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Read()
	assert.ErrorIs(t, err, ErrNotPublished)

	scr, err := screen.New(10, 3)
	require.NoError(t, err)
	scr.Feed([]byte("\x1b[32mgreen\x1b[0m\r\nline"))

	seq, err := pub.Publish(scr.Snapshot(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	frame, err := reader.Read()
	require.NoError(t, err)
	assert.Equal(t, seq, frame.Sequence)
	assert.False(t, frame.Exited)
	assert.True(t, frame.Snapshot.Equal(scr.Snapshot()), "got\n%s", frame.Snapshot)

	seq, err = pub.Publish(scr.Snapshot(), protocol.SnapshotFlagExited)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
	frame, err = reader.Read()
	require.NoError(t, err)
	assert.True(t, frame.Exited)
	assert.Equal(t, uint64(4), pub.Sequence())
}

func TestReaderRemapsAfterGrow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.shm")
	pub, err := NewPublisher(path, 4, 2)
	require.NoError(t, err)
	defer pub.Close()

	small, _ := screen.New(4, 2)
	_, err = pub.Publish(small.Snapshot(), 0)
	require.NoError(t, err)

	reader, err := OpenReader(path)
	require.NoError(t, err)
	defer reader.Close()
	_, err = reader.Read()
	require.NoError(t, err)

	big, _ := screen.New(80, 24)
	big.Feed([]byte("\x1b[24;1Hbottom"))
	_, err = pub.Publish(big.Snapshot(), 0)
	require.NoError(t, err)

	snap, err := reader.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint16(80), snap.Width)
	assert.Equal(t, "bottom", snap.RowContents(23))
}

func TestSessionPublishesOutput(t *testing.T) {
	d := newTestDaemon(t, 20, 4)
	d.proc.emit("hello\r\nworld")

	snap := d.waitText(t, "world")
	assert.Equal(t, "hello", snap.RowContents(0))
	assert.Equal(t, screen.Position{Row: 1, Col: 5}, snap.Cursor)
}

func TestServerControlMessages(t *testing.T) {
	d := newTestDaemon(t, 20, 4)
	c := dial(t, d.addr)
	ctx := context.Background()

	_, err := c.Input(ctx, []byte("typed"))
	require.NoError(t, err)
	d.waitText(t, "typed")
	assert.Equal(t, "typed", d.proc.received())

	before := d.server.Session().Sequence()
	seq, err := c.Resize(ctx, 30, 6)
	require.NoError(t, err)
	assert.Greater(t, seq, before)
	cols, rows := d.proc.size()
	assert.Equal(t, 30, cols)
	assert.Equal(t, 6, rows)

	snap, err := d.reader.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint16(30), snap.Width)
	assert.Equal(t, uint16(6), snap.Height)

	refreshed, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.Greater(t, refreshed, seq)

	rtt, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Positive(t, rtt)
	assert.Equal(t, d.server.Session().ID(), c.SessionID())
}

func TestServerAnswersBadRequestsWithErrors(t *testing.T) {
	d := newTestDaemon(t, 10, 3)
	conn, err := net.Dial("unix", d.addr)
	require.NoError(t, err)
	defer conn.Close()

	send := func(typ protocol.MessageType, payload []byte) protocol.ErrorFrame {
		t.Helper()
		require.NoError(t, protocol.WriteMessage(conn, protocol.Header{Version: protocol.Version, Type: typ, Sequence: 1}, payload))
		hdr, body, err := protocol.ReadMessage(conn)
		require.NoError(t, err)
		require.Equal(t, protocol.MsgError, hdr.Type)
		frame, err := protocol.DecodeErrorFrame(body)
		require.NoError(t, err)
		return frame
	}

	zero, _ := protocol.EncodeResize(protocol.Resize{})
	assert.Equal(t, protocol.ErrCodeInvalidSize, send(protocol.MsgResize, zero).Code)
	assert.Equal(t, protocol.ErrCodeBadRequest, send(protocol.MsgInput, []byte{1}).Code)
	assert.Equal(t, protocol.ErrCodeUnknownType, send(protocol.MessageType(99), nil).Code)

	// The connection survives request errors.
	ping, _ := protocol.EncodePing(protocol.Ping{Timestamp: 7})
	require.NoError(t, protocol.WriteMessage(conn, protocol.Header{Version: protocol.Version, Type: protocol.MsgPing, Sequence: 2}, ping))
	hdr, _, err := protocol.ReadMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgPong, hdr.Type)
	assert.Equal(t, uint64(2), hdr.Sequence)
}

func TestShutdownRequest(t *testing.T) {
	d := newTestDaemon(t, 10, 3)
	c := dial(t, d.addr)
	require.NoError(t, c.Shutdown(context.Background()))

	select {
	case <-d.server.ShutdownRequested():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown was not signalled")
	}
}

func TestProcessExitIsPublished(t *testing.T) {
	d := newTestDaemon(t, 10, 3)
	c := dial(t, d.addr)

	d.proc.emit("bye")
	require.NoError(t, d.proc.Close())

	_, err := waitfor.WaitFor(context.Background(), d.reader.Source(),
		waitfor.Cond("never", func(screen.Snapshot) bool { return false }),
		waitfor.Options[screen.Snapshot]{Timeout: 2 * time.Second, PollInterval: 5 * time.Millisecond})
	assert.ErrorIs(t, err, waitfor.ErrSourceExited)
	assert.True(t, d.server.Session().Exited())

	frame, err := d.reader.Read()
	require.NoError(t, err)
	assert.True(t, frame.Exited)
	assert.Equal(t, "bye", frame.Snapshot.RowContents(0))

	_, err = c.Input(context.Background(), []byte("x"))
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, protocol.ErrCodeProcess, remote.Code)
}

func TestHealthCheck(t *testing.T) {
	d := newTestDaemon(t, 10, 3)
	_, err := HealthCheck(context.Background(), d.addr, time.Second)
	require.NoError(t, err)

	start := time.Now()
	_, err = HealthCheck(context.Background(), filepath.Join(d.dir, "missing.sock"), 200*time.Millisecond)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = HealthCheck(expired, d.addr, time.Second)
	assert.ErrorIs(t, err, waitfor.ErrTimeout)
}

func TestStopPersistsSnapshot(t *testing.T) {
	d := newTestDaemon(t, 12, 3)
	store := NewSnapshotStore(filepath.Join(d.dir, "state", "last.json"))
	d.server.SetSnapshotStore(store)

	d.proc.emit("\x1b]2;probe\x07persist me")
	d.waitText(t, "persist me")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.server.Stop(ctx))

	stored, err := store.Load()
	require.NoError(t, err)
	assert.True(t, stored.Verify())
	assert.Equal(t, "probe", stored.Title)
	assert.Equal(t, "persist me", stored.Lines[0])

	snap := stored.Snapshot()
	assert.Equal(t, "persist me", snap.RowContents(0))
	assert.Equal(t, screen.Position{Row: 0, Col: 10}, snap.Cursor)

	stored.Lines[0] = "tampered"
	assert.False(t, stored.Verify())
}

func TestFormatUUID(t *testing.T) {
	var id [16]byte
	for i := range id {
		id[i] = byte(i)
	}
	assert.Equal(t, "00010203-0405-0607-0809-0a0b0c0d0e0f", FormatUUID(id))
}

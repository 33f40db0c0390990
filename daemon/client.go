package daemon

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/framegrace/texelprobe/protocol"
	"github.com/framegrace/texelprobe/waitfor"
)

var errUnexpectedMessage = errors.New("daemon: unexpected message type")

// RemoteError is an error frame returned by the daemon.
type RemoteError struct {
	Code    uint16
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("daemon: remote error %d: %s", e.Code, e.Message)
}

// Client issues control requests over the daemon socket. Requests are
// serialised; each waits for its reply.
type Client struct {
	mu        sync.Mutex
	conn      net.Conn
	seq       uint64
	sessionID [16]byte
}

// Dial connects to the daemon socket at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", addr)
	if err != nil {
		return nil, fmt.Errorf("daemon: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// SessionID is the id reported by the last reply.
func (c *Client) SessionID() [16]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Input writes data to the process and returns the snapshot sequence
// current when it was accepted.
func (c *Client) Input(ctx context.Context, data []byte) (uint64, error) {
	payload, err := protocol.EncodeInput(protocol.Input{Data: data})
	if err != nil {
		return 0, err
	}
	return c.ackRequest(ctx, protocol.MsgInput, payload)
}

// Resize resizes the daemon's screen and process.
func (c *Client) Resize(ctx context.Context, cols, rows int) (uint64, error) {
	if cols <= 0 || rows <= 0 || cols > 0xFFFF || rows > 0xFFFF {
		return 0, fmt.Errorf("daemon: invalid size %dx%d", cols, rows)
	}
	payload, _ := protocol.EncodeResize(protocol.Resize{Cols: uint16(cols), Rows: uint16(rows)})
	return c.ackRequest(ctx, protocol.MsgResize, payload)
}

// Refresh asks the daemon to republish and returns the new sequence.
func (c *Client) Refresh(ctx context.Context) (uint64, error) {
	return c.ackRequest(ctx, protocol.MsgRefresh, nil)
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.ackRequest(ctx, protocol.MsgShutdown, nil)
	return err
}

// Ping measures a round trip.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	payload, _ := protocol.EncodePing(protocol.Ping{Timestamp: start.UnixNano()})
	hdr, reply, err := c.roundTrip(ctx, protocol.MsgPing, payload)
	if err != nil {
		return 0, err
	}
	if hdr.Type != protocol.MsgPong {
		return 0, fmt.Errorf("%w: %s", errUnexpectedMessage, hdr.Type)
	}
	pong, err := protocol.DecodePong(reply)
	if err != nil {
		return 0, err
	}
	if pong.Timestamp != start.UnixNano() {
		return 0, fmt.Errorf("daemon: pong timestamp mismatch")
	}
	return time.Since(start), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) ackRequest(ctx context.Context, typ protocol.MessageType, payload []byte) (uint64, error) {
	hdr, reply, err := c.roundTrip(ctx, typ, payload)
	if err != nil {
		return 0, err
	}
	if hdr.Type != protocol.MsgAck {
		return 0, fmt.Errorf("%w: %s", errUnexpectedMessage, hdr.Type)
	}
	ack, err := protocol.DecodeAck(reply)
	if err != nil {
		return 0, err
	}
	return ack.Sequence, nil
}

func (c *Client) roundTrip(ctx context.Context, typ protocol.MessageType, payload []byte) (protocol.Header, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	c.seq++
	hdr := protocol.Header{Version: protocol.Version, Type: typ, Flags: protocol.FlagChecksum, Sequence: c.seq}
	if err := protocol.WriteMessage(c.conn, hdr, payload); err != nil {
		return hdr, nil, c.contextError(ctx, err)
	}
	reply, body, err := protocol.ReadMessage(c.conn)
	if err != nil {
		return reply, nil, c.contextError(ctx, err)
	}
	c.sessionID = reply.SessionID
	if reply.Sequence != c.seq {
		return reply, nil, fmt.Errorf("daemon: reply for request %d, want %d", reply.Sequence, c.seq)
	}
	if reply.Type == protocol.MsgError {
		frame, err := protocol.DecodeErrorFrame(body)
		if err != nil {
			return reply, nil, err
		}
		return reply, nil, &RemoteError{Code: frame.Code, Message: frame.Message}
	}
	return reply, body, nil
}

func (c *Client) contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// HealthCheck dials addr and waits for a pong within timeout, or less when
// ctx has an earlier deadline.
func HealthCheck(ctx context.Context, addr string, timeout time.Duration) (time.Duration, error) {
	budget := waitfor.Remaining(ctx, timeout, quartz.NewReal())
	if budget <= 0 {
		return 0, fmt.Errorf("%w: no time left for health check", waitfor.ErrTimeout)
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	c, err := Dial(ctx, addr)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return c.Ping(ctx)
}

// FormatUUID returns a session id as a human readable string.
func FormatUUID(id [16]byte) string {
	var buf bytes.Buffer
	for i, b := range id {
		buf.WriteString(hex.EncodeToString([]byte{b}))
		switch i {
		case 3, 5, 7, 9:
			buf.WriteByte('-')
		}
	}
	return buf.String()
}

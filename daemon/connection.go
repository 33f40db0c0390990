package daemon

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/framegrace/texelprobe/protocol"
)

type connection struct {
	conn   net.Conn
	server *Server
}

func newConnection(conn net.Conn, server *Server) *connection {
	return &connection{conn: conn, server: server}
}

func (c *connection) serve() error {
	for {
		header, payload, err := protocol.ReadMessage(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		debugLog.Printf("daemon: %s seq=%d len=%d", header.Type, header.Sequence, len(payload))
		if err := c.dispatch(header, payload); err != nil {
			return err
		}
	}
}

// dispatch applies one request. Request failures are answered with an
// error frame; only write failures end the connection.
func (c *connection) dispatch(header protocol.Header, payload []byte) error {
	session := c.server.session
	switch header.Type {
	case protocol.MsgInput:
		in, err := protocol.DecodeInput(payload)
		if err != nil {
			return c.writeError(header, protocol.ErrCodeBadRequest, err)
		}
		if err := session.Input(in.Data); err != nil {
			return c.writeError(header, protocol.ErrCodeProcess, err)
		}
		return c.writeAck(header, session.Sequence())
	case protocol.MsgResize:
		size, err := protocol.DecodeResize(payload)
		if err != nil {
			return c.writeError(header, protocol.ErrCodeBadRequest, err)
		}
		seq, err := session.Resize(int(size.Cols), int(size.Rows))
		if err != nil {
			return c.writeError(header, protocol.ErrCodeInvalidSize, err)
		}
		return c.writeAck(header, seq)
	case protocol.MsgRefresh:
		seq, err := session.Refresh()
		if err != nil {
			return c.writeError(header, protocol.ErrCodeProcess, err)
		}
		return c.writeAck(header, seq)
	case protocol.MsgShutdown:
		err := c.writeAck(header, session.Sequence())
		c.server.requestShutdown()
		return err
	case protocol.MsgPing:
		ping, err := protocol.DecodePing(payload)
		if err != nil {
			return c.writeError(header, protocol.ErrCodeBadRequest, err)
		}
		pong, _ := protocol.EncodePong(protocol.Pong{Timestamp: ping.Timestamp})
		return c.reply(header, protocol.MsgPong, pong)
	default:
		return c.writeError(header, protocol.ErrCodeUnknownType, fmt.Errorf("unknown message type %d", header.Type))
	}
}

func (c *connection) reply(req protocol.Header, typ protocol.MessageType, payload []byte) error {
	hdr := protocol.Header{
		Version:   protocol.Version,
		Type:      typ,
		Flags:     protocol.FlagChecksum,
		SessionID: c.server.session.ID(),
		Sequence:  req.Sequence,
	}
	return protocol.WriteMessage(c.conn, hdr, payload)
}

func (c *connection) writeAck(req protocol.Header, seq uint64) error {
	payload, _ := protocol.EncodeAck(protocol.Ack{Sequence: seq})
	return c.reply(req, protocol.MsgAck, payload)
}

func (c *connection) writeError(req protocol.Header, code uint16, cause error) error {
	payload, err := protocol.EncodeErrorFrame(protocol.ErrorFrame{Code: code, Message: cause.Error()})
	if err != nil {
		return err
	}
	return c.reply(req, protocol.MsgError, payload)
}

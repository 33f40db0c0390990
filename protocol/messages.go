// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/messages.go
// Summary: Control message payload codecs.

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var (
	errStringTooLong = errors.New("protocol: string exceeds 64KB limit")
	errPayloadShort  = errors.New("protocol: payload too short")
	errExtraBytes    = errors.New("protocol: payload has trailing data")
)

// Input carries raw bytes to write to the process.
type Input struct {
	Data []byte
}

// Resize changes the terminal size.
type Resize struct {
	Cols uint16
	Rows uint16
}

// Ack confirms a control message; Sequence is the snapshot sequence
// published after the message was applied.
type Ack struct {
	Sequence uint64
}

// ErrorFrame communicates a failed control message.
type ErrorFrame struct {
	Code    uint16
	Message string
}

// Error codes carried in ErrorFrame.
const (
	ErrCodeBadRequest uint16 = iota + 1
	ErrCodeInvalidSize
	ErrCodeProcess
	ErrCodeUnknownType
)

// Ping/Pong check liveness.
type Ping struct {
	Timestamp int64
}

type Pong struct {
	Timestamp int64
}

func encodeString(buf *bytes.Buffer, value string) error {
	if len(value) > 0xFFFF {
		return errStringTooLong
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(value))); err != nil {
		return err
	}
	if len(value) > 0 {
		if _, err := buf.WriteString(value); err != nil {
			return err
		}
	}
	return nil
}

func decodeString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errPayloadShort
	}
	length := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	if len(b) < int(length) {
		return "", nil, errPayloadShort
	}
	return string(b[:length]), b[length:], nil
}

func EncodeInput(in Input) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4+len(in.Data)))
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(in.Data))); err != nil {
		return nil, err
	}
	buf.Write(in.Data)
	return buf.Bytes(), nil
}

func DecodeInput(b []byte) (Input, error) {
	var in Input
	if len(b) < 4 {
		return in, errPayloadShort
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return in, errPayloadShort
	}
	if uint32(len(b)) > n {
		return in, errExtraBytes
	}
	in.Data = append([]byte(nil), b...)
	return in, nil
}

func EncodeResize(r Resize) ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], r.Cols)
	binary.LittleEndian.PutUint16(buf[2:4], r.Rows)
	return buf, nil
}

func DecodeResize(b []byte) (Resize, error) {
	var r Resize
	if len(b) < 4 {
		return r, errPayloadShort
	}
	if len(b) > 4 {
		return r, errExtraBytes
	}
	r.Cols = binary.LittleEndian.Uint16(b[0:2])
	r.Rows = binary.LittleEndian.Uint16(b[2:4])
	return r, nil
}

func EncodeAck(a Ack) ([]byte, error) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, a.Sequence)
	return buf, nil
}

func DecodeAck(b []byte) (Ack, error) {
	var ack Ack
	if len(b) < 8 {
		return ack, errPayloadShort
	}
	ack.Sequence = binary.LittleEndian.Uint64(b[:8])
	return ack, nil
}

func EncodeErrorFrame(e ErrorFrame) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4+len(e.Message)))
	if err := binary.Write(buf, binary.LittleEndian, e.Code); err != nil {
		return nil, err
	}
	if err := encodeString(buf, e.Message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeErrorFrame(b []byte) (ErrorFrame, error) {
	var e ErrorFrame
	if len(b) < 2 {
		return e, errPayloadShort
	}
	e.Code = binary.LittleEndian.Uint16(b[:2])
	msg, _, err := decodeString(b[2:])
	if err != nil {
		return e, err
	}
	e.Message = msg
	return e, nil
}

func EncodePing(p Ping) ([]byte, error) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(p.Timestamp))
	return buf, nil
}

func DecodePing(b []byte) (Ping, error) {
	var p Ping
	if len(b) < 8 {
		return p, errPayloadShort
	}
	p.Timestamp = int64(binary.LittleEndian.Uint64(b[:8]))
	return p, nil
}

func EncodePong(p Pong) ([]byte, error) {
	return EncodePing(Ping{Timestamp: p.Timestamp})
}

func DecodePong(b []byte) (Pong, error) {
	ping, err := DecodePing(b)
	if err != nil {
		return Pong{}, err
	}
	return Pong{Timestamp: ping.Timestamp}, nil
}

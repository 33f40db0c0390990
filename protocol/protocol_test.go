// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/protocol_test.go
// Summary: Exercises control frame encoding and validation.

package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var session [16]byte
	copy(session[:], []byte("probe-session-01"))

	header := Header{
		Version:   Version,
		Type:      MsgInput,
		Flags:     FlagChecksum,
		Sequence:  42,
		SessionID: session,
	}
	payload := []byte("ls -la\r")

	buf := &bytes.Buffer{}
	if err := WriteMessage(buf, header, payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if buf.Len() != headerSize+len(payload) {
		t.Fatalf("frame length %d, want %d", buf.Len(), headerSize+len(payload))
	}

	gotHeader, gotPayload, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if gotHeader.Type != header.Type || gotHeader.Sequence != header.Sequence || gotHeader.SessionID != session {
		t.Fatalf("header mismatch: %+v vs %+v", gotHeader, header)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload mismatch: %q vs %q", gotPayload, payload)
	}
}

func TestReadMessageInvalidMagic(t *testing.T) {
	data := make([]byte, headerSize)
	if _, _, err := ReadMessage(bytes.NewReader(data)); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestChecksumMismatch(t *testing.T) {
	header := Header{Version: Version, Type: MsgPing, Flags: FlagChecksum}
	buf := &bytes.Buffer{}
	if err := WriteMessage(buf, header, []byte("ping")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	if _, _, err := ReadMessage(bytes.NewReader(raw)); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	header := Header{Version: Version, Type: MsgRefresh}
	buf := &bytes.Buffer{}
	if err := WriteMessage(buf, header, nil); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	raw := buf.Bytes()
	raw[4] = Version + 1
	if _, _, err := ReadMessage(bytes.NewReader(raw)); !errors.Is(err, ErrUnsupportedVer) {
		t.Fatalf("expected ErrUnsupportedVer, got %v", err)
	}
}

func TestShortPayload(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteMessage(buf, Header{Version: Version, Type: MsgInput}, []byte("abcdef")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	raw := buf.Bytes()[:buf.Len()-2]
	if _, _, err := ReadMessage(bytes.NewReader(raw)); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	err := WriteMessage(&bytes.Buffer{}, Header{Version: Version, Type: MsgInput}, make([]byte, MaxPayload+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestMessageTypeString(t *testing.T) {
	if MsgResize.String() != "Resize" {
		t.Fatalf("unexpected name %q", MsgResize.String())
	}
	if MessageType(99).String() != "Unknown" {
		t.Fatalf("unexpected name %q", MessageType(99).String())
	}
}

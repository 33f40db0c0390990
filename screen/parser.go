// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: screen/parser.go
// Summary: Byte-level driver for the transition table.
// Usage: Screen.Feed pushes every byte through step.
// Notes: Parser state survives between Feed calls so sequences and UTF-8
// runes may be split at any boundary.

package screen

import (
	"unicode/utf8"
)

// Recovery bounds for malformed or oversized input.
const (
	// MaxCSIBytes is the number of parameter, private-marker and
	// intermediate bytes a CSI sequence may carry. The next byte discards
	// the sequence; the rest of it is ignored through the final byte.
	MaxCSIBytes = 64
	// MaxCSIParams caps the parameters kept for dispatch; extras are dropped.
	MaxCSIParams = 32
	// DefaultMaxStringBytes bounds OSC, DCS and APC bodies.
	DefaultMaxStringBytes = 4 << 20

	maxParamValue   = 65535
	maxIntermediate = 2
)

type stringKind uint8

const (
	stringOSC stringKind = iota
	stringDCS
	stringAPC
	stringPM
)

type parser struct {
	state State

	params       []int
	current      int
	paramBytes   int
	collected    int
	private      byte
	intermediate []byte

	kind      stringKind
	str       []byte
	maxString int
	anchorRow int
	anchorCol int

	utf8buf [utf8.UTFMax]byte
	utf8n   int
	utf8len int
}

func newParser(maxString int) parser {
	return parser{
		state:        StateGround,
		params:       make([]int, 0, 16),
		intermediate: make([]byte, 0, maxIntermediate),
		maxString:    maxString,
	}
}

func (p *parser) clear() {
	p.params = p.params[:0]
	p.current = 0
	p.paramBytes = 0
	p.collected = 0
	p.private = 0
	p.intermediate = p.intermediate[:0]
}

func (p *parser) step(s *Screen, b byte) {
	t := transitions[p.state][b]
	if p.utf8n > 0 && t.act != actPrint {
		s.print(utf8.RuneError)
		p.utf8n = 0
	}
	prev := p.state
	p.state = t.next

	switch t.act {
	case actIgnore:
	case actPrint:
		p.decode(s, b)
	case actExecute:
		s.execute(b)
	case actClear:
		p.clear()
	case actCollect:
		p.collect(b)
	case actParam:
		p.param(b)
	case actCSIDispatch:
		p.finishParams()
		s.dispatchCSI(p.private, p.intermediate, p.params, b)
	case actEscDispatch:
		s.dispatchEsc(p.intermediate, b)
	case actOSCStart:
		p.startString(s, stringOSC)
	case actDCSStart:
		p.startString(s, stringDCS)
	case actPrivateStart:
		kind := stringPM
		if b == '_' {
			kind = stringAPC
		}
		p.startString(s, kind)
	case actPut:
		p.put(b)
	case actStringEnd:
		s.dispatchString(p.kind, p.str, p.anchorRow, p.anchorCol)
		p.str = p.str[:0]
	case actStringAbort:
		debugLog.Printf("Screen: Discarding unterminated %s string (%d bytes)", prev, len(p.str))
		p.str = p.str[:0]
		p.clear()
		p.step(s, b)
	case actCancel:
		p.str = p.str[:0]
		p.clear()
	}
}

// decode assembles UTF-8 runes from printable bytes. Invalid sequences
// print U+FFFD.
func (p *parser) decode(s *Screen, b byte) {
	if b < utf8.RuneSelf {
		if p.utf8n > 0 {
			s.print(utf8.RuneError)
			p.utf8n = 0
		}
		s.print(rune(b))
		return
	}

	if b&0xc0 == 0x80 {
		if p.utf8n == 0 {
			s.print(utf8.RuneError)
			return
		}
		p.utf8buf[p.utf8n] = b
		p.utf8n++
		if p.utf8n == p.utf8len {
			r, _ := utf8.DecodeRune(p.utf8buf[:p.utf8n])
			p.utf8n = 0
			s.print(r)
		}
		return
	}

	if p.utf8n > 0 {
		s.print(utf8.RuneError)
		p.utf8n = 0
	}
	switch {
	case b&0xe0 == 0xc0:
		p.utf8len = 2
	case b&0xf0 == 0xe0:
		p.utf8len = 3
	case b&0xf8 == 0xf0:
		p.utf8len = 4
	default:
		s.print(utf8.RuneError)
		return
	}
	p.utf8buf[0] = b
	p.utf8n = 1
}

func (p *parser) overflow() bool {
	p.collected++
	if p.collected > MaxCSIBytes {
		debugLog.Printf("Screen: CSI sequence exceeded %d bytes, discarding", MaxCSIBytes)
		p.discard()
		return true
	}
	return false
}

// discard drops the sequence being collected. Inside CSI the remaining
// bytes are swallowed up to the final byte.
func (p *parser) discard() {
	p.clear()
	if p.state == StateCSI {
		p.state = StateCSIIgnore
		return
	}
	p.state = StateGround
}

func (p *parser) collect(b byte) {
	if p.overflow() {
		return
	}
	if b >= 0x3c && b <= 0x3f {
		if p.state != StateCSI || p.private != 0 || p.paramBytes > 0 || len(p.intermediate) > 0 {
			debugLog.Printf("Screen: Misplaced private marker %q, discarding sequence", b)
			p.discard()
			return
		}
		p.private = b
		return
	}
	if len(p.intermediate) >= maxIntermediate {
		debugLog.Printf("Screen: Too many intermediate bytes, discarding sequence")
		p.discard()
		return
	}
	p.intermediate = append(p.intermediate, b)
}

func (p *parser) param(b byte) {
	if p.overflow() {
		return
	}
	if len(p.intermediate) > 0 {
		debugLog.Printf("Screen: Parameter byte %q after intermediate, discarding sequence", b)
		p.discard()
		return
	}
	p.paramBytes++
	if b == ';' || b == ':' {
		p.pushParam()
		return
	}
	p.current = p.current*10 + int(b-'0')
	if p.current > maxParamValue {
		p.current = maxParamValue
	}
}

func (p *parser) pushParam() {
	if len(p.params) < MaxCSIParams {
		p.params = append(p.params, p.current)
	}
	p.current = 0
}

func (p *parser) finishParams() {
	if p.paramBytes > 0 {
		p.pushParam()
	}
}

func (p *parser) startString(s *Screen, kind stringKind) {
	p.clear()
	p.kind = kind
	p.str = p.str[:0]
	p.anchorRow, p.anchorCol = s.cur.row, s.cur.col
}

func (p *parser) put(b byte) {
	if len(p.str) >= p.maxString {
		debugLog.Printf("Screen: String body exceeded %d bytes, ignoring until terminator", p.maxString)
		p.str = p.str[:0]
		p.state = StateStringIgnore
		if p.kind == stringOSC {
			p.state = StateOSCIgnore
		}
		return
	}
	p.str = append(p.str, b)
}

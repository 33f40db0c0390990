// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: screen/table.go
// Summary: Parser states and the (state, byte) transition table.
// Notes: The table is built once at init; the hot loop is a single lookup.

package screen

import "fmt"

// State is the parser's machine state.
type State uint8

const (
	StateGround State = iota
	StateEscape
	StateEscapeIntermediate
	StateCSI
	StateOSC
	StateOSCEscape
	StateDCS
	StateDCSEscape
	StatePrivate
	StatePrivateEscape
	StateStringIgnore
	StateCSIIgnore
	StateOSCIgnore
	numStates
)

var stateNames = [numStates]string{
	"Ground", "Escape", "EscapeIntermediate", "CSI", "OSC", "OSCEscape",
	"DCS", "DCSEscape", "Private", "PrivateEscape", "StringIgnore",
	"CSIIgnore", "OSCIgnore",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

type action uint8

const (
	actIgnore action = iota
	actPrint
	actExecute
	actClear
	actCollect
	actParam
	actCSIDispatch
	actEscDispatch
	actOSCStart
	actDCSStart
	actPrivateStart
	actPut
	actStringEnd
	actStringAbort
	actCancel
)

type transition struct {
	next State
	act  action
}

var transitions [numStates][256]transition

const (
	bel = 0x07
	can = 0x18
	sub = 0x1a
	esc = 0x1b
	del = 0x7f
)

func init() {
	for s := State(0); s < numStates; s++ {
		for b := 0; b < 256; b++ {
			transitions[s][b] = buildTransition(s, byte(b))
		}
	}
}

func isC0(b byte) bool {
	return b < 0x20 && b != esc && b != can && b != sub
}

func buildTransition(s State, b byte) transition {
	// CAN and SUB abort anything in progress.
	if b == can || b == sub {
		if s == StateGround {
			return transition{StateGround, actExecute}
		}
		return transition{StateGround, actCancel}
	}

	switch s {
	case StateGround:
		switch {
		case b == esc:
			return transition{StateEscape, actClear}
		case isC0(b):
			return transition{StateGround, actExecute}
		case b == del:
			return transition{StateGround, actIgnore}
		default:
			return transition{StateGround, actPrint}
		}

	case StateEscape, StateEscapeIntermediate:
		switch {
		case b == esc:
			return transition{StateEscape, actClear}
		case isC0(b):
			return transition{s, actExecute}
		case b >= 0x20 && b <= 0x2f:
			return transition{StateEscapeIntermediate, actCollect}
		case s == StateEscape && b == '[':
			return transition{StateCSI, actClear}
		case s == StateEscape && b == ']':
			return transition{StateOSC, actOSCStart}
		case s == StateEscape && b == 'P':
			return transition{StateDCS, actDCSStart}
		case s == StateEscape && (b == '_' || b == '^' || b == 'X'):
			return transition{StatePrivate, actPrivateStart}
		case b >= 0x30 && b <= 0x7e:
			return transition{StateGround, actEscDispatch}
		case b == del:
			return transition{s, actIgnore}
		default:
			return transition{StateGround, actIgnore}
		}

	case StateCSI:
		switch {
		case b == esc:
			return transition{StateEscape, actClear}
		case isC0(b):
			return transition{StateCSI, actExecute}
		case (b >= '0' && b <= '9') || b == ';' || b == ':':
			return transition{StateCSI, actParam}
		case b >= 0x3c && b <= 0x3f:
			return transition{StateCSI, actCollect}
		case b >= 0x20 && b <= 0x2f:
			return transition{StateCSI, actCollect}
		case b >= 0x40 && b <= 0x7e:
			return transition{StateGround, actCSIDispatch}
		case b == del:
			return transition{StateCSI, actIgnore}
		default:
			return transition{StateGround, actIgnore}
		}

	case StateOSC:
		switch b {
		case esc:
			return transition{StateOSCEscape, actIgnore}
		case bel:
			return transition{StateGround, actStringEnd}
		default:
			return transition{StateOSC, actPut}
		}

	case StateDCS, StatePrivate:
		escState := StateDCSEscape
		if s == StatePrivate {
			escState = StatePrivateEscape
		}
		if b == esc {
			return transition{escState, actIgnore}
		}
		return transition{s, actPut}

	case StateOSCEscape, StateDCSEscape, StatePrivateEscape:
		if b == '\\' {
			return transition{StateGround, actStringEnd}
		}
		return transition{StateEscape, actStringAbort}

	case StateCSIIgnore:
		// A malformed CSI is swallowed through its final byte.
		switch {
		case b == esc:
			return transition{StateEscape, actClear}
		case isC0(b):
			return transition{StateCSIIgnore, actExecute}
		case b >= 0x40 && b <= 0x7e:
			return transition{StateGround, actIgnore}
		default:
			return transition{StateCSIIgnore, actIgnore}
		}

	case StateStringIgnore, StateOSCIgnore:
		// Only OSC accepts BEL as a terminator.
		switch {
		case b == esc:
			return transition{StateEscape, actClear}
		case b == bel && s == StateOSCIgnore:
			return transition{StateGround, actIgnore}
		default:
			return transition{s, actIgnore}
		}
	}
	return transition{StateGround, actIgnore}
}

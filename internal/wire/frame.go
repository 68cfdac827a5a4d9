// Package wire defines the byte-level frame format exchanged over the
// WebSocket connection between a client and ttywebd: a one-byte command
// code followed by a command-specific payload. Each WebSocket message
// carries exactly one frame; there is no length prefix because the
// WebSocket layer already frames messages for us.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Cmd identifies the kind of frame.
type Cmd byte

const (
	// CmdOutput carries shell output, server to client.
	CmdOutput Cmd = 0x00
	// CmdInput carries keystrokes, client to server.
	CmdInput Cmd = 0x00
	// CmdResize carries a window-size change, client to server.
	CmdResize Cmd = 0x01
	// CmdSessionID announces the session id, server to client, sent once
	// immediately after attach.
	CmdSessionID Cmd = 0x10
	// CmdScrollback carries the replayed scrollback snapshot, server to
	// client, sent once immediately after CmdSessionID.
	CmdScrollback Cmd = 0x11
	// CmdShellExit announces the shell has exited, server to client, sent
	// at most once and never followed by another frame.
	CmdShellExit Cmd = 0x12
)

// Encode builds a frame with the given command and raw payload.
func Encode(cmd Cmd, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = byte(cmd)
	copy(out[1:], payload)
	return out
}

// Decode splits a raw WebSocket message into its command and payload. It
// returns an error if msg is empty.
func Decode(msg []byte) (Cmd, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, fmt.Errorf("wire: empty frame")
	}
	return Cmd(msg[0]), msg[1:], nil
}

// EncodeResize builds a CmdResize frame for the given terminal size.
func EncodeResize(rows, cols uint16) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], rows)
	binary.BigEndian.PutUint16(payload[2:4], cols)
	return Encode(CmdResize, payload)
}

// DecodeResize parses a CmdResize frame's payload. Payloads longer than 4
// bytes are accepted, with any trailing bytes ignored, so a future client
// sending extra fields does not get its resize dropped as malformed.
func DecodeResize(payload []byte) (rows, cols uint16, err error) {
	if len(payload) < 4 {
		return 0, 0, fmt.Errorf("wire: resize payload must be at least 4 bytes, got %d", len(payload))
	}
	rows = binary.BigEndian.Uint16(payload[0:2])
	cols = binary.BigEndian.Uint16(payload[2:4])
	return rows, cols, nil
}

// EncodeSessionID builds a CmdSessionID frame.
func EncodeSessionID(id string) []byte {
	return Encode(CmdSessionID, []byte(id))
}

// EncodeScrollback builds a CmdScrollback frame.
func EncodeScrollback(data []byte) []byte {
	return Encode(CmdScrollback, data)
}

// EncodeShellExit builds a CmdShellExit frame. It carries no payload.
func EncodeShellExit() []byte {
	return Encode(CmdShellExit, nil)
}

// EncodeOutput builds a CmdOutput frame carrying shell output.
func EncodeOutput(data []byte) []byte {
	return Encode(CmdOutput, data)
}

// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgPing carries no payload; its arrival alone is the liveness signal.
type MsgPing struct{}

// Command implements the Message interface.
func (m *MsgPing) Command() string { return CmdPing }

// MaxPayloadLength implements the Message interface.
func (m *MsgPing) MaxPayloadLength() uint32 { return 0 }

// BtcEncode implements the Message interface.
func (m *MsgPing) BtcEncode(w io.Writer) error { return nil }

// BtcDecode implements the Message interface.
func (m *MsgPing) BtcDecode(r io.Reader) error { return nil }

// MsgPong carries no payload.
type MsgPong struct{}

// Command implements the Message interface.
func (m *MsgPong) Command() string { return CmdPong }

// MaxPayloadLength implements the Message interface.
func (m *MsgPong) MaxPayloadLength() uint32 { return 0 }

// BtcEncode implements the Message interface.
func (m *MsgPong) BtcEncode(w io.Writer) error { return nil }

// BtcDecode implements the Message interface.
func (m *MsgPong) BtcDecode(r io.Reader) error { return nil }

// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxBlockHeaderSize bounds the serialised block header carried by
// bestblock. The header bytes are opaque to this codec: decoding them into
// a typed header is the external blockchain codec's job.
const MaxBlockHeaderSize = 4096

// MsgBestBlock announces the sender's view of the current upstream
// blockchain tip, serialised by the external blockchain codec.
type MsgBestBlock struct {
	HeaderBytes []byte
}

// Command implements the Message interface.
func (m *MsgBestBlock) Command() string { return CmdBestBlock }

// MaxPayloadLength implements the Message interface.
func (m *MsgBestBlock) MaxPayloadLength() uint32 {
	return uint32(VarIntSerializeSize(MaxBlockHeaderSize)) + MaxBlockHeaderSize
}

// BtcEncode implements the Message interface.
func (m *MsgBestBlock) BtcEncode(w io.Writer) error {
	return WriteVarBytes(w, m.HeaderBytes)
}

// BtcDecode implements the Message interface.
func (m *MsgBestBlock) BtcDecode(r io.Reader) error {
	b, err := ReadVarBytes(r, MaxBlockHeaderSize, "block header")
	if err != nil {
		return err
	}
	m.HeaderBytes = b
	return nil
}

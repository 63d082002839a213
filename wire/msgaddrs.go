// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MsgAddrs carries a batch of peer addresses, sent in reply to getaddrs or
// gossiped unsolicited.
type MsgAddrs struct {
	AddrList []NetAddress
}

// Command implements the Message interface.
func (m *MsgAddrs) Command() string { return CmdAddrs }

// MaxPayloadLength implements the Message interface.
func (m *MsgAddrs) MaxPayloadLength() uint32 {
	return uint32(VarIntSerializeSize(MaxAddrsPerMsg)) + MaxAddrsPerMsg*18
}

// BtcEncode implements the Message interface.
func (m *MsgAddrs) BtcEncode(w io.Writer) error {
	if err := WriteVarInt(w, uint64(len(m.AddrList))); err != nil {
		return err
	}
	for i := range m.AddrList {
		if err := writeNetAddress(w, &m.AddrList[i]); err != nil {
			return err
		}
	}
	return nil
}

// BtcDecode implements the Message interface.
func (m *MsgAddrs) BtcDecode(r io.Reader) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxAddrsPerMsg {
		return messageError("MsgAddrs.BtcDecode", ErrPayloadTooLarge,
			"too many addresses for message")
	}
	if count == 0 {
		m.AddrList = nil
		return nil
	}
	addrs := make([]NetAddress, count)
	for i := range addrs {
		na, err := readNetAddress(r)
		if err != nil {
			return err
		}
		addrs[i] = *na
	}
	m.AddrList = addrs
	return nil
}

// MsgAddrMe carries the sender's own listening port, letting the receiver
// learn where to dial the sender back.
type MsgAddrMe struct {
	Port uint16
}

// Command implements the Message interface.
func (m *MsgAddrMe) Command() string { return CmdAddrMe }

// MaxPayloadLength implements the Message interface.
func (m *MsgAddrMe) MaxPayloadLength() uint32 { return 2 }

// BtcEncode implements the Message interface.
func (m *MsgAddrMe) BtcEncode(w io.Writer) error {
	return writeElement(w, m.Port)
}

// BtcDecode implements the Message interface.
func (m *MsgAddrMe) BtcDecode(r io.Reader) error {
	return readElement(r, &m.Port)
}

// MsgGetAddrs requests up to Count peer addresses from the remote.
type MsgGetAddrs struct {
	Count uint32
}

// Command implements the Message interface.
func (m *MsgGetAddrs) Command() string { return CmdGetAddrs }

// MaxPayloadLength implements the Message interface.
func (m *MsgGetAddrs) MaxPayloadLength() uint32 { return 4 }

// BtcEncode implements the Message interface.
func (m *MsgGetAddrs) BtcEncode(w io.Writer) error {
	return writeElement(w, m.Count)
}

// BtcDecode implements the Message interface.
func (m *MsgGetAddrs) BtcDecode(r io.Reader) error {
	return readElement(r, &m.Count)
}

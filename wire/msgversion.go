// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// MaxSubVersionLength bounds the sub-version string carried in a version
// message (e.g. "js2pool/1.0.0").
const MaxSubVersionLength = 256

// MsgVersion is the first message a peer sends after connecting. It
// advertises the sender's capabilities and chain tip and carries the
// addresses each side observed for the other, letting a node learn its own
// externally visible address the same way a full-node version handshake
// does.
type MsgVersion struct {
	Services        uint64
	ProtocolVersion uint32
	SubVersion      string
	AddrTo          NetAddress
	AddrFrom        NetAddress
	Nonce           uint64
	BestShareHash   chainhash.Hash
}

// Command implements the Message interface.
func (m *MsgVersion) Command() string { return CmdVersion }

// MaxPayloadLength implements the Message interface.
func (m *MsgVersion) MaxPayloadLength() uint32 {
	return 8 + 4 + uint32(VarIntSerializeSize(MaxSubVersionLength)) + MaxSubVersionLength + 18 + 18 + 8 + chainhash.HashSize
}

// BtcEncode implements the Message interface.
func (m *MsgVersion) BtcEncode(w io.Writer) error {
	if err := writeElement(w, m.Services); err != nil {
		return err
	}
	if err := writeElement(w, m.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteVarString(w, m.SubVersion); err != nil {
		return err
	}
	if err := writeNetAddress(w, &m.AddrTo); err != nil {
		return err
	}
	if err := writeNetAddress(w, &m.AddrFrom); err != nil {
		return err
	}
	if err := writeElement(w, m.Nonce); err != nil {
		return err
	}
	return writeElement(w, &m.BestShareHash)
}

// BtcDecode implements the Message interface.
func (m *MsgVersion) BtcDecode(r io.Reader) error {
	if err := readElement(r, &m.Services); err != nil {
		return err
	}
	if err := readElement(r, &m.ProtocolVersion); err != nil {
		return err
	}
	sub, err := ReadVarString(r, MaxSubVersionLength)
	if err != nil {
		return err
	}
	m.SubVersion = sub
	addrTo, err := readNetAddress(r)
	if err != nil {
		return err
	}
	m.AddrTo = *addrTo
	addrFrom, err := readNetAddress(r)
	if err != nil {
		return err
	}
	m.AddrFrom = *addrFrom
	if err := readElement(r, &m.Nonce); err != nil {
		return err
	}
	return readElement(r, &m.BestShareHash)
}

// IsZeroHash reports whether h is the canonical "no best share yet" zero
// hash. Preserved verbatim from the source's loose-equality "== 0" check on
// the decoded best-share-hash: a peer advertising the zero hash is treated
// as having no chain to request, not as an error.
func IsZeroHash(h chainhash.Hash) bool {
	return h == (chainhash.Hash{})
}

// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/math/uint256"
)

// MaxShareReqHashes bounds the hashes/stops lists of a sharereq.
const MaxShareReqHashes = 1000

func writeUint256(w io.Writer, id *uint256.Uint256) error {
	b := id.Bytes()
	_, err := w.Write(b[:])
	return err
}

func readUint256(r io.Reader) (uint256.Uint256, error) {
	var buf [32]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return uint256.Uint256{}, err
	}
	var id uint256.Uint256
	id.SetBytesLE(&buf)
	return id, nil
}

// MsgShareReq requests, for each hash in Hashes, up to Parents ancestors
// walking backward from that hash, stopping early at any hash present in
// Stops. ID is a 256-bit unsigned request identifier echoed back in the
// matching sharereply so replies can be matched to requests even when
// several are outstanding at once.
type MsgShareReq struct {
	ID      uint256.Uint256
	Hashes  []chainhash.Hash
	Parents uint32
	Stops   []chainhash.Hash
}

// Command implements the Message interface.
func (m *MsgShareReq) Command() string { return CmdShareReq }

// MaxPayloadLength implements the Message interface.
func (m *MsgShareReq) MaxPayloadLength() uint32 {
	return 32 + 2*(uint32(VarIntSerializeSize(MaxShareReqHashes))+MaxShareReqHashes*chainhash.HashSize) + 4
}

// BtcEncode implements the Message interface.
func (m *MsgShareReq) BtcEncode(w io.Writer) error {
	if err := writeUint256(w, &m.ID); err != nil {
		return err
	}
	if err := writeHashes(w, m.Hashes); err != nil {
		return err
	}
	if err := writeElement(w, m.Parents); err != nil {
		return err
	}
	return writeHashes(w, m.Stops)
}

// BtcDecode implements the Message interface.
func (m *MsgShareReq) BtcDecode(r io.Reader) error {
	id, err := readUint256(r)
	if err != nil {
		return err
	}
	m.ID = id

	hashes, err := readHashes(r, MaxShareReqHashes)
	if err != nil {
		return err
	}
	m.Hashes = hashes

	if err := readElement(r, &m.Parents); err != nil {
		return err
	}

	stops, err := readHashes(r, MaxShareReqHashes)
	if err != nil {
		return err
	}
	m.Stops = stops
	return nil
}

// Share request result codes carried by sharereply.Result.
const (
	ShareReplyOK        = uint8(0)
	ShareReplyNotFound  = uint8(2)
)

// MsgShareReply answers a MsgShareReq: Result is ShareReplyOK with Shares
// populated, or a non-zero code (ShareReplyNotFound when nothing in the
// local store satisfied the request) with an empty Shares container.
type MsgShareReply struct {
	ID     uint256.Uint256
	Result uint8
	Shares []ShareWrapper
}

// Command implements the Message interface.
func (m *MsgShareReply) Command() string { return CmdShareReply }

// MaxPayloadLength implements the Message interface.
func (m *MsgShareReply) MaxPayloadLength() uint32 { return MaxMessagePayload }

// BtcEncode implements the Message interface.
func (m *MsgShareReply) BtcEncode(w io.Writer) error {
	if err := writeUint256(w, &m.ID); err != nil {
		return err
	}
	if err := writeElement(w, m.Result); err != nil {
		return err
	}
	return writeShareWrappers(w, m.Shares)
}

// BtcDecode implements the Message interface.
func (m *MsgShareReply) BtcDecode(r io.Reader) error {
	id, err := readUint256(r)
	if err != nil {
		return err
	}
	m.ID = id

	if err := readElement(r, &m.Result); err != nil {
		return err
	}

	shares, err := readShareWrappers(r)
	if err != nil {
		return err
	}
	m.Shares = shares
	return nil
}

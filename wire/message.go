// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the share-chain peer-to-peer wire protocol: a
// framed, checksummed, magic-prefixed binary protocol and the thirteen
// message types exchanged between share-chain peers. It follows the shape
// of the btcsuite/Decred wire package (fixed header, per-type
// BtcEncode/BtcDecode pairs, readElement/writeElement primitives) adapted
// from a full blockchain's inventory protocol to a share-chain's share and
// transaction-inventory protocol.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// ProtocolMagic identifies a share-chain network. It is the first field of
// every frame header and lets peers immediately reject traffic from a
// foreign network.
type ProtocolMagic uint64

// Well-known command strings. CommandSize is the fixed on-wire width of the
// command field; names longer than this cannot exist and names shorter are
// zero-padded.
const (
	CommandSize = 12

	CmdVersion     = "version"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdAddrs       = "addrs"
	CmdAddrMe      = "addrme"
	CmdGetAddrs    = "getaddrs"
	CmdHaveTx      = "have_tx"
	CmdLosingTx    = "losing_tx"
	CmdForgetTx    = "forget_tx"
	CmdRememberTx  = "remember_tx"
	CmdBestBlock   = "bestblock"
	CmdShares      = "shares"
	CmdShareReq    = "sharereq"
	CmdShareReply  = "sharereply"
)

// MaxMessagePayload is the maximum length, in bytes, any message payload
// belonging to this protocol may declare. It bounds allocation on decode
// regardless of what an (untrusted) peer claims in the frame header.
const MaxMessagePayload = 4 * 1024 * 1024 // 4 MiB

// Message is the interface every share-chain wire message implements: pure,
// total encode/decode over a byte stream, no I/O beyond the passed
// reader/writer.
type Message interface {
	BtcDecode(r io.Reader) error
	BtcEncode(w io.Writer) error
	Command() string
	MaxPayloadLength() uint32
}

// MakeEmptyMessage returns a freshly allocated Message of the type
// identified by command, or ErrUnknownCommand if the command is not one of
// the thirteen defined message types.
func MakeEmptyMessage(command string) (Message, error) {
	switch command {
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdPing:
		return &MsgPing{}, nil
	case CmdPong:
		return &MsgPong{}, nil
	case CmdAddrs:
		return &MsgAddrs{}, nil
	case CmdAddrMe:
		return &MsgAddrMe{}, nil
	case CmdGetAddrs:
		return &MsgGetAddrs{}, nil
	case CmdHaveTx:
		return &MsgHaveTx{}, nil
	case CmdLosingTx:
		return &MsgLosingTx{}, nil
	case CmdForgetTx:
		return &MsgForgetTx{}, nil
	case CmdRememberTx:
		return &MsgRememberTx{}, nil
	case CmdBestBlock:
		return &MsgBestBlock{}, nil
	case CmdShares:
		return &MsgShares{}, nil
	case CmdShareReq:
		return &MsgShareReq{}, nil
	case CmdShareReply:
		return &MsgShareReply{}, nil
	default:
		return nil, messageError("MakeEmptyMessage", ErrUnknownCommand,
			fmt.Sprintf("unhandled command [%s]", command))
	}
}

// -----------------------------------------------------------------------
// Low level element helpers: readElement/writeElement/varint family.
// -----------------------------------------------------------------------

func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint8:
		return binary.Write(w, binary.LittleEndian, e)
	case uint16:
		return binary.Write(w, binary.LittleEndian, e)
	case uint32:
		return binary.Write(w, binary.LittleEndian, e)
	case uint64:
		return binary.Write(w, binary.LittleEndian, e)
	case int64:
		return binary.Write(w, binary.LittleEndian, e)
	case bool:
		var b uint8
		if e {
			b = 1
		}
		return binary.Write(w, binary.LittleEndian, b)
	case [4]byte:
		_, err := w.Write(e[:])
		return err
	case [16]byte:
		_, err := w.Write(e[:])
		return err
	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	case *chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	default:
		return binary.Write(w, binary.LittleEndian, element)
	}
}

func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint8:
		return binary.Read(r, binary.LittleEndian, e)
	case *uint16:
		return binary.Read(r, binary.LittleEndian, e)
	case *uint32:
		return binary.Read(r, binary.LittleEndian, e)
	case *uint64:
		return binary.Read(r, binary.LittleEndian, e)
	case *int64:
		return binary.Read(r, binary.LittleEndian, e)
	case *bool:
		var b uint8
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return err
		}
		*e = b != 0
		return nil
	case *[4]byte:
		_, err := io.ReadFull(r, e[:])
		return err
	case *[16]byte:
		_, err := io.ReadFull(r, e[:])
		return err
	case *chainhash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err
	default:
		return binary.Read(r, binary.LittleEndian, element)
	}
}

// ReadVarInt reads a variable length integer using a prefix-byte encoding:
// values below 0xfd are encoded as a single byte; 0xfd/0xfe/0xff prefix a
// following uint16/uint32/uint64.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}

	switch prefix[0] {
	case 0xff:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return v, nil
	case 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	default:
		return uint64(prefix[0]), nil
	}
}

// WriteVarInt writes val using the minimal prefix-byte encoding ReadVarInt
// understands.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{byte(val)})
		return err
	}
	if val <= 0xffff {
		if _, err := w.Write([]byte{0xfd}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, uint16(val))
	}
	if val <= 0xffffffff {
		if _, err := w.Write([]byte{0xfe}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, uint32(val))
	}
	if _, err := w.Write([]byte{0xff}); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, val)
}

// VarIntSerializeSize returns the number of bytes WriteVarInt would write
// for val.
func VarIntSerializeSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// ReadVarBytes reads a variable-length byte slice prefixed by a VarInt
// length, rejecting anything declaring a length over maxAllowed.
func ReadVarBytes(r io.Reader, maxAllowed uint32, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > uint64(maxAllowed) {
		return nil, messageError("ReadVarBytes", ErrPayloadTooLarge,
			fmt.Sprintf("%s is larger than the max allowed size [count %d, max %d]",
				fieldName, count, maxAllowed))
	}
	if count == 0 {
		return nil, nil
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteVarBytes writes a VarInt-prefixed byte slice.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarString reads a VarInt-prefixed UTF-8 string.
func ReadVarString(r io.Reader, maxAllowed uint32) (string, error) {
	b, err := ReadVarBytes(r, maxAllowed, "variable length string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteVarString writes a VarInt-prefixed UTF-8 string.
func WriteVarString(w io.Writer, s string) error {
	return WriteVarBytes(w, []byte(s))
}

// readHashes reads a VarInt count followed by that many 32-byte hashes.
func readHashes(r io.Reader, max uint32) ([]chainhash.Hash, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > uint64(max) {
		return nil, messageError("readHashes", ErrPayloadTooLarge,
			fmt.Sprintf("too many hashes for message [count %d, max %d]", count, max))
	}
	if count == 0 {
		return nil, nil
	}
	hashes := make([]chainhash.Hash, count)
	for i := range hashes {
		if err := readElement(r, &hashes[i]); err != nil {
			return nil, err
		}
	}
	return hashes, nil
}

// writeHashes writes a VarInt count followed by each hash.
func writeHashes(w io.Writer, hashes []chainhash.Hash) error {
	if err := WriteVarInt(w, uint64(len(hashes))); err != nil {
		return err
	}
	for i := range hashes {
		if err := writeElement(w, &hashes[i]); err != nil {
			return err
		}
	}
	return nil
}

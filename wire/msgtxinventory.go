// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// MaxTxHashesPerMsg bounds the hash lists carried by have_tx, losing_tx,
// and forget_tx.
const MaxTxHashesPerMsg = 50000

// MsgHaveTx advertises transactions the sender is willing to describe.
type MsgHaveTx struct {
	Hashes []chainhash.Hash
}

// Command implements the Message interface.
func (m *MsgHaveTx) Command() string { return CmdHaveTx }

// MaxPayloadLength implements the Message interface.
func (m *MsgHaveTx) MaxPayloadLength() uint32 {
	return uint32(VarIntSerializeSize(MaxTxHashesPerMsg)) + MaxTxHashesPerMsg*chainhash.HashSize
}

// BtcEncode implements the Message interface.
func (m *MsgHaveTx) BtcEncode(w io.Writer) error { return writeHashes(w, m.Hashes) }

// BtcDecode implements the Message interface.
func (m *MsgHaveTx) BtcDecode(r io.Reader) error {
	hashes, err := readHashes(r, MaxTxHashesPerMsg)
	if err != nil {
		return err
	}
	m.Hashes = hashes
	return nil
}

// MsgLosingTx withdraws transactions previously advertised via have_tx,
// e.g. because they left the sender's mempool.
type MsgLosingTx struct {
	Hashes []chainhash.Hash
}

// Command implements the Message interface.
func (m *MsgLosingTx) Command() string { return CmdLosingTx }

// MaxPayloadLength implements the Message interface.
func (m *MsgLosingTx) MaxPayloadLength() uint32 {
	return uint32(VarIntSerializeSize(MaxTxHashesPerMsg)) + MaxTxHashesPerMsg*chainhash.HashSize
}

// BtcEncode implements the Message interface.
func (m *MsgLosingTx) BtcEncode(w io.Writer) error { return writeHashes(w, m.Hashes) }

// BtcDecode implements the Message interface.
func (m *MsgLosingTx) BtcDecode(r io.Reader) error {
	hashes, err := readHashes(r, MaxTxHashesPerMsg)
	if err != nil {
		return err
	}
	m.Hashes = hashes
	return nil
}

// MsgForgetTx tells the receiver it may drop the named transactions from
// whatever it remembered on the sender's behalf; TotalSize is the combined
// byte size of the transactions being forgotten, carried so the receiver
// can account for freed memory without re-measuring.
type MsgForgetTx struct {
	Hashes    []chainhash.Hash
	TotalSize uint32
}

// Command implements the Message interface.
func (m *MsgForgetTx) Command() string { return CmdForgetTx }

// MaxPayloadLength implements the Message interface.
func (m *MsgForgetTx) MaxPayloadLength() uint32 {
	return uint32(VarIntSerializeSize(MaxTxHashesPerMsg)) + MaxTxHashesPerMsg*chainhash.HashSize + 4
}

// BtcEncode implements the Message interface.
func (m *MsgForgetTx) BtcEncode(w io.Writer) error {
	if err := writeHashes(w, m.Hashes); err != nil {
		return err
	}
	return writeElement(w, m.TotalSize)
}

// BtcDecode implements the Message interface.
func (m *MsgForgetTx) BtcDecode(r io.Reader) error {
	hashes, err := readHashes(r, MaxTxHashesPerMsg)
	if err != nil {
		return err
	}
	m.Hashes = hashes
	return readElement(r, &m.TotalSize)
}

// MaxRememberedTxsPerMsg bounds the inline transaction list of a
// remember_tx message.
const MaxRememberedTxsPerMsg = 10000

// MsgRememberTx asks the receiver to retain the named transactions -- some
// referred to only by hash (because they were already advertised via
// have_tx), others included inline in full -- so the sender can later
// resolve a share's newly-referenced transactions against them.
type MsgRememberTx struct {
	Hashes []chainhash.Hash
	Txs    []TransactionTemplate
}

// Command implements the Message interface.
func (m *MsgRememberTx) Command() string { return CmdRememberTx }

// MaxPayloadLength implements the Message interface.
func (m *MsgRememberTx) MaxPayloadLength() uint32 { return MaxMessagePayload }

// BtcEncode implements the Message interface.
func (m *MsgRememberTx) BtcEncode(w io.Writer) error {
	if err := writeHashes(w, m.Hashes); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(m.Txs))); err != nil {
		return err
	}
	for i := range m.Txs {
		if err := writeTxTemplate(w, &m.Txs[i]); err != nil {
			return err
		}
	}
	return nil
}

// BtcDecode implements the Message interface.
func (m *MsgRememberTx) BtcDecode(r io.Reader) error {
	hashes, err := readHashes(r, MaxTxHashesPerMsg)
	if err != nil {
		return err
	}
	m.Hashes = hashes

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxRememberedTxsPerMsg {
		return messageError("MsgRememberTx.BtcDecode", ErrPayloadTooLarge,
			"too many inline transactions for message")
	}
	if count == 0 {
		m.Txs = nil
		return nil
	}
	txs := make([]TransactionTemplate, count)
	for i := range txs {
		t, err := readTxTemplate(r)
		if err != nil {
			return err
		}
		txs[i] = *t
	}
	m.Txs = txs
	return nil
}

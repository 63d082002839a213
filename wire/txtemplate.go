// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/hex"
	"io"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// MaxTxDataSize bounds the raw transaction body carried inline in a
// remember_tx message; on the wire the body is raw bytes, and Data holds it
// hex-encoded.
const MaxTxDataSize = 1024 * 1024 // 1 MiB of tx bytes, i.e. 2 MiB of hex

// TransactionTemplate is a pending blockchain transaction as exchanged
// between share-chain peers: a (txid, hash) pair -- present separately
// because some chains distinguish a transaction's legacy id from its
// witness-inclusive hash -- plus the hex-encoded transaction body.
type TransactionTemplate struct {
	Txid chainhash.Hash
	Hash chainhash.Hash
	Data string
}

// Key returns the lookup key used by knownTxs/miningTxs/rememberedTxs maps:
// the concatenation of Txid and Hash, since either may be used by a peer to
// refer to the transaction.
func (t *TransactionTemplate) Key() string {
	return t.Txid.String() + t.Hash.String()
}

func writeTxTemplate(w io.Writer, t *TransactionTemplate) error {
	if err := writeElement(w, &t.Txid); err != nil {
		return err
	}
	if err := writeElement(w, &t.Hash); err != nil {
		return err
	}
	data, err := hex.DecodeString(t.Data)
	if err != nil {
		return messageError("writeTxTemplate", ErrMessageDecode, err.Error())
	}
	return WriteVarBytes(w, data)
}

func readTxTemplate(r io.Reader) (*TransactionTemplate, error) {
	t := &TransactionTemplate{}
	if err := readElement(r, &t.Txid); err != nil {
		return nil, err
	}
	if err := readElement(r, &t.Hash); err != nil {
		return nil, err
	}
	data, err := ReadVarBytes(r, uint32(MaxTxDataSize), "tx data")
	if err != nil {
		return nil, err
	}
	t.Data = hex.EncodeToString(data)
	return t, nil
}

// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sharechain implements the share-chain store: a dual-indexed,
// sliding-window, in-memory database of shares tracking gaps, orphans, dead
// shares, and main-chain verification, narrowed from a database-backed
// full chain to a bounded in-memory window.
package sharechain

import (
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/math/uint256"
)

// Share is the core's view of a share: a low-difficulty proof-of-work
// object forming the pool's side ledger. Its cryptographic construction and
// proof-of-work validation are external collaborators; this interface
// exposes only what the store needs to index and order shares.
type Share interface {
	// Hash is the share's 32-byte identifier.
	Hash() chainhash.Hash

	// AbsHeight is the share's monotonically assigned absolute height.
	AbsHeight() uint32

	// PreviousShareHash is the parent share's hash.
	PreviousShareHash() chainhash.Hash

	// NewTransactionHashes lists the transaction ids this share first
	// references.
	NewTransactionHashes() []chainhash.Hash

	// Timestamp is the share's claimed creation time, Unix seconds.
	Timestamp() int64

	// Work is this share's proof-of-work value.
	Work() uint256.Uint256

	// MinWork is the minimum work this share's difficulty permits.
	MinWork() uint256.Uint256

	// Valid reports whether external validation accepted this share.
	// Invalid shares are never admitted to the store.
	Valid() bool

	// Version is the share-format version tag carried in the wire
	// shares container.
	Version() uint32

	// Contents returns the share's opaque version-specific encoding, the
	// same bytes a wire.ShareWrapper carried it in originally. Callers
	// re-wrap it verbatim to relay a stored share back onto the wire
	// (sharereq replies, rebroadcast), so this package never needs to
	// import the wire protocol itself.
	Contents() []byte
}

// Constructor builds a typed Share from the raw wire payload bytes and
// version tag carried by a wire.ShareWrapper. It is the external share
// constructor collaborator.
type Constructor interface {
	NewShare(version uint32, contents []byte) (Share, error)
}

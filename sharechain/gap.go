// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sharechain

import "github.com/decred/dcrd/chaincfg/chainhash"

// Gap is a contiguous missing window below a known share: Descendent sits
// at DescendentHeight and its ancestor chain is unknown for the Length
// heights immediately below it.
type Gap struct {
	Descendent       chainhash.Hash
	DescendentHeight uint32
	Length           uint32
}

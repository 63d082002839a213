// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"strconv"

	"github.com/decred/dcrd/lru"
	"github.com/sharepool/sharenode/wire"
)

// seenAddrsCapacity bounds the recently-gossiped address cache: a real
// deployment sees far more gossiped addresses than it will ever dial, and
// without a bound the dedup set would grow without limit over a
// long-running node's lifetime.
const seenAddrsCapacity = 2000

// addrBook deduplicates peer addresses learned via addrs/getaddrs gossip
// using a bounded recency cache.
type addrBook struct {
	seen *lru.Cache[string]
}

func newAddrBook() *addrBook {
	return &addrBook{seen: lru.New[string](seenAddrsCapacity)}
}

func addrKey(a wire.NetAddress) string {
	return a.IP.String() + ":" + strconv.Itoa(int(a.Port))
}

// noteAndCheck records a as seen and reports whether it had been seen
// before.
func (b *addrBook) noteAndCheck(a wire.NetAddress) (alreadySeen bool) {
	key := addrKey(a)
	if b.seen.Contains(key) {
		return true
	}
	b.seen.Add(key)
	return false
}

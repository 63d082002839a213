// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/sharepool/sharenode/wire"
)

// txMap is a snapshot of transactions keyed by TransactionTemplate.Key().
type txMap map[string]wire.TransactionTemplate

// findByHashOrTxid scans m for an entry whose Hash or Txid equals h. The
// map is keyed by the concatenated Key(), not by either field alone, since
// peers may refer to a transaction by either identifier.
func (m txMap) findByHashOrTxid(h chainhash.Hash) (wire.TransactionTemplate, bool) {
	for _, t := range m {
		if t.Hash == h || t.Txid == h {
			return t, true
		}
	}
	return wire.TransactionTemplate{}, false
}

func (m txMap) values() []wire.TransactionTemplate {
	out := make([]wire.TransactionTemplate, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	return out
}

// diffTxMaps returns the transactions present in next but not cur
// (added) and those present in cur but not next (removed).
func diffTxMaps(cur, next txMap) (added, removed []wire.TransactionTemplate) {
	for k, t := range next {
		if _, ok := cur[k]; !ok {
			added = append(added, t)
		}
	}
	for k, t := range cur {
		if _, ok := next[k]; !ok {
			removed = append(removed, t)
		}
	}
	return added, removed
}

// txView is a copy-on-write mapping: every Replace swaps in an entirely
// new txMap and hands registered observers the (old, new, added, removed)
// snapshot, all before Replace returns, so observers always see a
// consistent broadcast slice.
type txView struct {
	current txMap
	onReplace []func(old, next txMap, added, removed []wire.TransactionTemplate)
}

func newTxView() *txView {
	return &txView{current: txMap{}}
}

// OnReplace registers f to run synchronously inside every Replace call that
// actually changes membership.
func (v *txView) OnReplace(f func(old, next txMap, added, removed []wire.TransactionTemplate)) {
	v.onReplace = append(v.onReplace, f)
}

// Snapshot returns the current mapping. Because Replace always swaps in a
// new map rather than mutating in place, the returned map is safe for the
// caller to range over even if Replace runs concurrently afterward.
func (v *txView) Snapshot() txMap { return v.current }

// Replace installs next as the current mapping and fires onReplace
// observers with the diff, unless next is identical in membership to the
// current mapping.
func (v *txView) Replace(next txMap) {
	old := v.current
	added, removed := diffTxMaps(old, next)
	v.current = next
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	for _, f := range v.onReplace {
		f(old, next, added, removed)
	}
}

// put returns a copy of m with t inserted under its key, for building
// the next snapshot passed to Replace.
func (m txMap) put(t wire.TransactionTemplate) txMap {
	next := make(txMap, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	next[t.Key()] = t
	return next
}

// without returns a copy of m with every key in keys removed.
func (m txMap) without(keys map[string]struct{}) txMap {
	next := make(txMap, len(m))
	for k, v := range m {
		if _, drop := keys[k]; drop {
			continue
		}
		next[k] = v
	}
	return next
}

// merge returns a copy of m with every entry of other inserted, other's
// values winning on key collision.
func (m txMap) merge(other txMap) txMap {
	next := make(txMap, len(m)+len(other))
	for k, v := range m {
		next[k] = v
	}
	for k, v := range other {
		next[k] = v
	}
	return next
}

// txCacheRing is the bounded ring buffer of previously-evicted knownTxs
// sets (knownTxsCaches): when a peer references a tx hash no longer in
// knownTxs, this is searched oldest-to-newest before giving up.
type txCacheRing struct {
	entries  [][]wire.TransactionTemplate
	capacity int
}

func newTxCacheRing(capacity int) *txCacheRing {
	return &txCacheRing{capacity: capacity}
}

// push records a newly-evicted set, trimming the ring to capacity.
func (r *txCacheRing) push(removed []wire.TransactionTemplate) {
	if len(removed) == 0 {
		return
	}
	r.entries = append(r.entries, removed)
	if len(r.entries) > r.capacity {
		r.entries = r.entries[len(r.entries)-r.capacity:]
	}
}

// find looks up key across every cached set, oldest first.
func (r *txCacheRing) find(key string) (wire.TransactionTemplate, bool) {
	for _, set := range r.entries {
		for _, t := range set {
			if t.Key() == key {
				return t, true
			}
		}
	}
	return wire.TransactionTemplate{}, false
}

// findByHash looks up a transaction by its Hash or Txid field across every
// cached set, oldest first, matching the resolution order used for
// unknown-transaction references in incoming shares.
func (r *txCacheRing) findByHash(h chainhash.Hash) (wire.TransactionTemplate, bool) {
	for _, set := range r.entries {
		for _, t := range set {
			if t.Hash == h || t.Txid == h {
				return t, true
			}
		}
	}
	return wire.TransactionTemplate{}, false
}

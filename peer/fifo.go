// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import "github.com/decred/dcrd/chaincfg/chainhash"

// fifoHashSet is an insertion-ordered, bounded set of hashes used for
// remoteTxHashs. A generic LRU cache evicts on every insertion and so
// cannot reproduce the exact batch semantics observed here:
// handleHave_tx trims down to capacity once per incoming message, then
// inserts the whole batch unconditionally, which means the set can sit
// above capacity until the next have_tx arrives. That quirk is preserved
// here deliberately rather than "fixed" into a strict bound.
type fifoHashSet struct {
	order    []chainhash.Hash
	member   map[chainhash.Hash]struct{}
	capacity int
}

func newFIFOHashSet(capacity int) *fifoHashSet {
	return &fifoHashSet{
		member:   make(map[chainhash.Hash]struct{}),
		capacity: capacity,
	}
}

// trim evicts the oldest entries until the set is at or under capacity.
func (s *fifoHashSet) trim() {
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.member, oldest)
	}
}

// insertBatch trims to capacity, then inserts every hash in hashes,
// skipping ones already present. See the type doc comment: trimming
// happens once before the batch, not once per hash.
func (s *fifoHashSet) insertBatch(hashes []chainhash.Hash) {
	s.trim()
	for _, h := range hashes {
		if _, ok := s.member[h]; ok {
			continue
		}
		s.member[h] = struct{}{}
		s.order = append(s.order, h)
	}
}

func (s *fifoHashSet) remove(h chainhash.Hash) {
	if _, ok := s.member[h]; !ok {
		return
	}
	delete(s.member, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *fifoHashSet) has(h chainhash.Hash) bool {
	_, ok := s.member[h]
	return ok
}

func (s *fifoHashSet) len() int { return len(s.order) }

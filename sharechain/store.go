// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sharechain

import "github.com/decred/dcrd/chaincfg/chainhash"

// Chain-length constants. BaseChainLength approximates 24 hours of shares
// at a 10 second target; MaxChainLength is the sliding-window ceiling
// beyond which the oldest heights are evicted.
const (
	BaseChainLength = 8640 // 24 * 60 * 60 / 10
	MaxChainLength  = 17280
)

// Direction selects which way Subchain walks from its starting hash.
type Direction int

// Subchain walk directions.
const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Store is a dual-indexed, sliding-window database of shares. Callers get
// an owning *Store rather than a process global, so tests (and a future
// multi-chain embedder) can construct fresh, independent stores.
type Store struct {
	Observers Observers

	hashIndexer      map[chainhash.Hash]uint32
	absheightIndexer map[uint32][]Share

	newest Share
	oldest Share

	verifiedCount uint32
	verifiedOK    bool
	calculatable  bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		hashIndexer:      make(map[chainhash.Hash]uint32),
		absheightIndexer: make(map[uint32][]Share),
	}
}

// Newest returns the current chain tip, or nil if the store is empty.
func (s *Store) Newest() Share { return s.newest }

// Oldest returns the share at the bottom of the sliding window, or nil if
// the store is empty.
func (s *Store) Oldest() Share { return s.oldest }

// Len returns the number of heights currently tracked.
func (s *Store) Len() int { return len(s.absheightIndexer) }

// Has reports whether hash is indexed.
func (s *Store) Has(hash chainhash.Hash) bool {
	_, ok := s.hashIndexer[hash]
	return ok
}

// AtHeight returns the shares at height, main-chain share first, or nil if
// no share is known at that height.
func (s *Store) AtHeight(height uint32) []Share {
	return s.absheightIndexer[height]
}

// ByHash returns the share with the given hash and its height, if known.
func (s *Store) ByHash(hash chainhash.Hash) (Share, uint32, bool) {
	height, ok := s.hashIndexer[hash]
	if !ok {
		return nil, 0, false
	}
	for _, sh := range s.absheightIndexer[height] {
		if sh.Hash() == hash {
			return sh, height, true
		}
	}
	return nil, 0, false
}

// Append admits share into the store, returning true iff it is a new
// main-chain candidate worth broadcasting to peers. It follows a
// branch-by-branch contract for where the share lands relative to the
// current tip, preserving several edge cases exactly as observed rather
// than "fixing" them.
func (s *Store) Append(share Share) bool {
	if !share.Valid() {
		return false
	}

	hash := share.Hash()
	if _, dup := s.hashIndexer[hash]; dup {
		return false
	}

	height := share.AbsHeight()
	s.hashIndexer[hash] = height
	s.absheightIndexer[height] = append(s.absheightIndexer[height], share)

	if s.oldest == nil || height < s.oldest.AbsHeight() {
		s.oldest = share
	}

	switch {
	case s.newest == nil:
		s.newest = share
		s.oldest = share
		return true
	case height > s.newest.AbsHeight():
		return s.onNewTip(share)
	case height == s.newest.AbsHeight():
		s.Observers.fireCandidateArrived(share)
		return false
	default:
		return s.onBelowNewest(share)
	}
}

// onNewTip handles the case where the appended share becomes the new
// chain tip.
func (s *Store) onNewTip(share Share) bool {
	s.newest = share
	s.Observers.fireNewestChanged(share)
	s.cleanDeprecations()

	height := share.AbsHeight()
	if height == 0 {
		return true
	}

	siblings := s.absheightIndexer[height-1]
	switch len(siblings) {
	case 0:
		s.Observers.fireGapsFound([]Gap{{
			Descendent:       share.Hash(),
			DescendentHeight: height,
			Length:           1,
		}})
	case 1:
		// Exactly one ancestor candidate; nothing more to resolve.
	default:
		parentHash := share.PreviousShareHash()
		verifiedIdx := -1
		for i, sib := range siblings {
			if sib.Hash() == parentHash {
				verifiedIdx = i
				break
			}
		}
		if verifiedIdx == -1 {
			// None of the candidates at height-1 is our ancestor.
			s.Observers.fireGapsFound([]Gap{{
				Descendent:       share.Hash(),
				DescendentHeight: height,
				Length:           1,
			}})
		} else {
			verified := siblings[verifiedIdx]
			orphans := make([]Share, 0, len(siblings)-1)
			for i, sib := range siblings {
				if i != verifiedIdx {
					orphans = append(orphans, sib)
				}
			}
			reordered := make([]Share, 0, len(siblings))
			reordered = append(reordered, verified)
			reordered = append(reordered, orphans...)
			s.absheightIndexer[height-1] = reordered
			s.Observers.fireOrphansFound(orphans)
		}
	}
	return true
}

// onBelowNewest handles the case where the appended share lands strictly
// below the current tip.
func (s *Store) onBelowNewest(share Share) bool {
	height := share.AbsHeight()
	siblings := s.absheightIndexer[height]
	if len(siblings) == 1 {
		// Old share quietly filling in a previously unknown height.
		return false
	}

	above := s.absheightIndexer[height+1]
	hasDescendent := false
	for _, d := range above {
		if d.PreviousShareHash() == share.Hash() {
			hasDescendent = true
			break
		}
	}
	if !hasDescendent {
		s.removeShare(share)
		s.Observers.fireDeadArrived(share)
		return false
	}

	idx := -1
	for i, sib := range siblings {
		if sib.Hash() == share.Hash() {
			idx = i
			break
		}
	}
	orphans := make([]Share, 0, len(siblings)-1)
	for i, sib := range siblings {
		if i != idx {
			orphans = append(orphans, sib)
		}
	}
	reordered := make([]Share, 0, len(siblings))
	reordered = append(reordered, share)
	reordered = append(reordered, orphans...)
	s.absheightIndexer[height] = reordered
	s.Observers.fireOrphansFound(orphans)
	return true
}

// removeShare deletes share from both indexes, used only to undo the
// speculative insertion Append performs before discovering a share is
// dead.
func (s *Store) removeShare(share Share) {
	hash := share.Hash()
	height := share.AbsHeight()
	delete(s.hashIndexer, hash)

	list := s.absheightIndexer[height]
	for i, sh := range list {
		if sh.Hash() == hash {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.absheightIndexer, height)
	} else {
		s.absheightIndexer[height] = list
	}

	if s.oldest != nil && s.oldest.Hash() == hash {
		s.oldest = s.findOldest()
	}
}

func (s *Store) findOldest() Share {
	var min uint32
	found := false
	for h := range s.absheightIndexer {
		if !found || h < min {
			min = h
			found = true
		}
	}
	if !found {
		return nil
	}
	return s.absheightIndexer[min][0]
}

// cleanDeprecations drops every share at the oldest tracked height once the
// window exceeds MaxChainLength. It evicts at most one height per call;
// repeated ingestion naturally advances oldest across subsequent calls.
func (s *Store) cleanDeprecations() {
	if s.newest == nil || s.oldest == nil {
		return
	}
	if s.newest.AbsHeight()-s.oldest.AbsHeight() < MaxChainLength {
		return
	}

	height := s.oldest.AbsHeight()
	for _, sh := range s.absheightIndexer[height] {
		delete(s.hashIndexer, sh.Hash())
	}
	delete(s.absheightIndexer, height)
	s.oldest = s.findOldest()
}

// Verify walks backward from the chain tip requiring each height's
// main-chain share to be the parent its descendant actually names. It
// latches ChainCalculatable the first time the full window verifies and
// meets BaseChainLength, firing the observer exactly once, and returns
// whether the entire currently-held window is internally consistent.
func (s *Store) Verify() bool {
	if s.newest == nil || s.oldest == nil {
		return false
	}

	windowLength := s.newest.AbsHeight() - s.oldest.AbsHeight() + 1
	expectedHash := s.newest.Hash()
	h := s.newest.AbsHeight()

	var count uint32
	for {
		list, ok := s.absheightIndexer[h]
		if !ok || len(list) == 0 || list[0].Hash() != expectedHash {
			break
		}
		count++
		if h == s.oldest.AbsHeight() {
			break
		}
		expectedHash = list[0].PreviousShareHash()
		h--
	}

	s.verifiedCount = count
	full := count == windowLength
	s.verifiedOK = full

	if full && count >= BaseChainLength && !s.calculatable {
		s.calculatable = true
		s.Observers.fireChainCalculatable()
	}
	return full
}

// Calculatable reports whether Verify has ever latched ChainCalculatable.
func (s *Store) Calculatable() bool { return s.calculatable }

// CheckGaps walks the height index in descending order comparing adjacent
// heights, emitting a GapsFound event naming every discontinuity (a missing
// height, or a present-but-unlinked ancestor), plus a terminal gap below
// the oldest share when the window is shorter than BaseChainLength.
func (s *Store) CheckGaps() []Gap {
	if s.newest == nil {
		return nil
	}

	heights := make([]uint32, 0, len(s.absheightIndexer))
	for h := range s.absheightIndexer {
		heights = append(heights, h)
	}
	sortDescending(heights)

	var gaps []Gap
	for i := 0; i+1 < len(heights); i++ {
		descHeight, ancHeight := heights[i], heights[i+1]
		desc := s.absheightIndexer[descHeight][0]
		anc := s.absheightIndexer[ancHeight][0]
		if descHeight-ancHeight != 1 || anc.Hash() != desc.PreviousShareHash() {
			gaps = append(gaps, Gap{
				Descendent:       desc.Hash(),
				DescendentHeight: descHeight,
				Length:           descHeight - ancHeight,
			})
		}
	}

	windowLength := s.newest.AbsHeight() - s.oldest.AbsHeight() + 1
	if windowLength < BaseChainLength {
		gaps = append(gaps, Gap{
			Descendent:       s.oldest.Hash(),
			DescendentHeight: s.oldest.AbsHeight(),
			Length:           BaseChainLength - windowLength,
		})
	}

	s.Observers.fireGapsFound(gaps)
	return gaps
}

func sortDescending(heights []uint32) {
	for i := 1; i < len(heights); i++ {
		for j := i; j > 0 && heights[j-1] < heights[j]; j-- {
			heights[j-1], heights[j] = heights[j], heights[j-1]
		}
	}
}

// Subchain eagerly walks up to length shares starting at startHash,
// stepping by direction, always reading the main-chain (index 0) share at
// each height, and stopping early the first time a height is missing. It
// returns nil when startHash is not indexed.
func (s *Store) Subchain(startHash chainhash.Hash, length int, direction Direction) []Share {
	if !s.Has(startHash) {
		return nil
	}
	result := make([]Share, 0, length)
	next := s.SubchainFunc(startHash, length, direction)
	for {
		share, ok := next()
		if !ok {
			break
		}
		result = append(result, share)
	}
	return result
}

// SubchainFunc returns a lazy generator over the same walk Subchain
// performs, for callers (such as sharereq/sharereply handling) that want to
// stop consuming before length is reached without building the whole slice.
func (s *Store) SubchainFunc(startHash chainhash.Hash, length int, direction Direction) func() (Share, bool) {
	startHeight, ok := s.hashIndexer[startHash]
	if !ok {
		return func() (Share, bool) { return nil, false }
	}

	h := int64(startHeight)
	remaining := length
	return func() (Share, bool) {
		if remaining <= 0 || h < 0 {
			return nil, false
		}
		list, ok := s.absheightIndexer[uint32(h)]
		if !ok || len(list) == 0 {
			remaining = 0
			return nil, false
		}
		share := list[0]
		remaining--
		h += int64(direction)
		return share, true
	}
}

// Stats is a point-in-time snapshot used by observability consumers
// (statusrv) and tests.
type Stats struct {
	WindowHeights int
	NewestHeight  uint32
	OldestHeight  uint32
	Calculatable  bool
	VerifiedCount uint32
	VerifiedOK    bool
}

// Stats returns a snapshot of the store's current window.
func (s *Store) Stats() Stats {
	st := Stats{
		WindowHeights: len(s.absheightIndexer),
		Calculatable:  s.calculatable,
		VerifiedCount: s.verifiedCount,
		VerifiedOK:    s.verifiedOK,
	}
	if s.newest != nil {
		st.NewestHeight = s.newest.AbsHeight()
	}
	if s.oldest != nil {
		st.OldestHeight = s.oldest.AbsHeight()
	}
	return st
}

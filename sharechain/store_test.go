// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sharechain

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/math/uint256"
)

// testShare is a minimal Share used only to exercise Store in isolation
// from any real share-construction or proof-of-work logic.
type testShare struct {
	hash     chainhash.Hash
	height   uint32
	prev     chainhash.Hash
	newTxs   []chainhash.Hash
	ts       int64
	work     uint256.Uint256
	minWork  uint256.Uint256
	valid    bool
	version  uint32
}

func (s *testShare) Hash() chainhash.Hash                      { return s.hash }
func (s *testShare) AbsHeight() uint32                         { return s.height }
func (s *testShare) PreviousShareHash() chainhash.Hash         { return s.prev }
func (s *testShare) NewTransactionHashes() []chainhash.Hash    { return s.newTxs }
func (s *testShare) Timestamp() int64                          { return s.ts }
func (s *testShare) Work() uint256.Uint256                     { return s.work }
func (s *testShare) MinWork() uint256.Uint256                  { return s.minWork }
func (s *testShare) Valid() bool                               { return s.valid }
func (s *testShare) Version() uint32                           { return s.version }
func (s *testShare) Contents() []byte                          { return nil }

// mustHash derives a distinct, deterministic hash from a label so tests
// read as a chain of small integers rather than hex blobs.
func mustHash(label string) chainhash.Hash {
	return chainhash.HashH([]byte(label))
}

// mkShare builds a valid testShare at height with the given label and
// parent label. Passing parentLabel == "" leaves PreviousShareHash zeroed.
func mkShare(label string, height uint32, parentLabel string) *testShare {
	var prev chainhash.Hash
	if parentLabel != "" {
		prev = mustHash(parentLabel)
	}
	return &testShare{
		hash:   mustHash(label),
		height: height,
		prev:   prev,
		ts:     int64(height),
		valid:  true,
	}
}

func chainOf(n int, startHeight uint32) []*testShare {
	shares := make([]*testShare, n)
	prevLabel := ""
	for i := 0; i < n; i++ {
		label := fmt.Sprintf("s%d", startHeight+uint32(i))
		shares[i] = mkShare(label, startHeight+uint32(i), prevLabel)
		prevLabel = label
	}
	return shares
}

func TestAppendFirstShareIsCandidate(t *testing.T) {
	s := New()
	first := mkShare("genesis", 0, "")
	if got := s.Append(first); !got {
		t.Fatalf("Append(first) = false, want true")
	}
	if s.Newest() != Share(first) || s.Oldest() != Share(first) {
		t.Fatalf("newest/oldest not set to first share")
	}
}

func TestAppendInvalidShareRejected(t *testing.T) {
	s := New()
	bad := mkShare("bad", 0, "")
	bad.valid = false
	if got := s.Append(bad); got {
		t.Fatalf("Append(invalid) = true, want false")
	}
	if s.Has(bad.Hash()) {
		t.Fatalf("invalid share was indexed")
	}
}

func TestAppendDuplicateIdempotent(t *testing.T) {
	s := New()
	first := mkShare("genesis", 0, "")
	s.Append(first)
	if got := s.Append(first); got {
		t.Fatalf("Append(dup) = true, want false")
	}
	if len(s.AtHeight(0)) != 1 {
		t.Fatalf("duplicate share was inserted again: %d entries", len(s.AtHeight(0)))
	}
}

func TestAppendNewTipAdvancesWithoutGap(t *testing.T) {
	s := New()
	chain := chainOf(5, 0)
	for i, sh := range chain {
		got := s.Append(sh)
		if !got {
			t.Fatalf("Append(chain[%d]) = false, want true", i)
		}
	}
	if s.Newest().Hash() != chain[4].Hash() {
		t.Fatalf("newest = %v, want %v", s.Newest().Hash(), chain[4].Hash())
	}
	gaps := s.CheckGaps()
	wantTerminal := Gap{Descendent: chain[0].Hash(), DescendentHeight: 0, Length: BaseChainLength - 5}
	if len(gaps) != 1 || gaps[0] != wantTerminal {
		t.Fatalf("CheckGaps() = %v, want only the terminal gap %+v (no gap inside the window)", gaps, wantTerminal)
	}
}

func TestAppendNewTipWithMissingParentFiresGap(t *testing.T) {
	var gotGaps []Gap
	s := New()
	s.Observers.OnGapsFound(func(gaps []Gap) { gotGaps = append(gotGaps, gaps...) })

	s.Append(mkShare("s0", 0, ""))
	// s2's parent is s1, which we never saw.
	s.Append(mkShare("s2", 2, "s1"))

	if len(gotGaps) != 1 {
		t.Fatalf("got %d gap events, want 1: %v", len(gotGaps), gotGaps)
	}
	want := Gap{Descendent: mustHash("s2"), DescendentHeight: 2, Length: 1}
	if gotGaps[0] != want {
		t.Fatalf("gap = %+v, want %+v", gotGaps[0], want)
	}
}

func TestAppendSiblingFiresCandidateArrivedNotNewestChanged(t *testing.T) {
	var candidates, newests int
	s := New()
	s.Observers.OnCandidateArrived(func(Share) { candidates++ })
	s.Observers.OnNewestChanged(func(Share) { newests++ })

	s.Append(mkShare("s0", 0, ""))
	s.Append(mkShare("s1a", 1, "s0"))
	newests = 0 // reset after the two tip-advancing appends above

	got := s.Append(mkShare("s1b", 1, "s0"))
	if got {
		t.Fatalf("Append(sibling) = true, want false")
	}
	if candidates != 1 {
		t.Fatalf("candidateArrived fired %d times, want 1", candidates)
	}
	if newests != 0 {
		t.Fatalf("newestChanged fired %d times for a sibling, want 0", newests)
	}
}

func TestAppendOrphansDemotedOnVerifiedSibling(t *testing.T) {
	var orphaned []Share
	s := New()
	s.Observers.OnOrphansFound(func(o []Share) { orphaned = append(orphaned, o...) })

	s0 := mkShare("s0", 0, "")
	s1a := mkShare("s1a", 1, "s0")
	s1b := mkShare("s1b", 1, "s0")
	s2 := mkShare("s2", 2, "s1a")

	s.Append(s0)
	s.Append(s1a)
	s.Append(s1b)
	s.Append(s2)

	if len(orphaned) != 1 || orphaned[0].Hash() != s1b.Hash() {
		t.Fatalf("orphaned = %v, want [s1b]", orphaned)
	}
	atOne := s.AtHeight(1)
	if len(atOne) != 2 || atOne[0].Hash() != s1a.Hash() {
		t.Fatalf("height 1 list = %v, want [s1a, s1b]", atOne)
	}
}

func TestAppendBelowNewestSilentFillIn(t *testing.T) {
	s := New()
	s.Append(mkShare("s0", 0, ""))
	s.Append(mkShare("s2", 2, "s1")) // creates a gap at height 1
	s1 := mkShare("s1", 1, "s0")

	got := s.Append(s1)
	if got {
		t.Fatalf("Append(old share filling gap, no descendant yet indexed) = true, want false")
	}
	if !s.Has(s1.Hash()) {
		t.Fatalf("silently-filled share should remain indexed")
	}
}

func TestAppendBelowNewestDeadShareRemoved(t *testing.T) {
	var dead []Share
	s := New()
	s.Observers.OnDeadArrived(func(sh Share) { dead = append(dead, sh) })

	s.Append(mkShare("s0", 0, ""))
	s.Append(mkShare("s1", 1, "s0"))
	s.Append(mkShare("s2", 2, "s1"))

	// An old share at height 1 that no descendant references as a parent.
	imposter := mkShare("imposter1", 1, "s0")
	got := s.Append(imposter)
	if got {
		t.Fatalf("Append(dead share) = true, want false")
	}
	if s.Has(imposter.Hash()) {
		t.Fatalf("dead share should have been removed from the hash index")
	}
	for _, sh := range s.AtHeight(1) {
		if sh.Hash() == imposter.Hash() {
			t.Fatalf("dead share should have been removed from the height index")
		}
	}
	if len(dead) != 1 || dead[0].Hash() != imposter.Hash() {
		t.Fatalf("deadArrived = %v, want [imposter1]", dead)
	}
}

func TestAppendBelowNewestPromotesOverVerifiedSibling(t *testing.T) {
	var orphaned []Share
	s := New()
	s.Observers.OnOrphansFound(func(o []Share) { orphaned = append(orphaned, o...) })

	s0 := mkShare("s0", 0, "")
	s1a := mkShare("s1a", 1, "s0")
	s2 := mkShare("s2", 2, "s1a")
	s.Append(s0)
	s.Append(s1a)
	s.Append(s2)

	// s1b arrives late but s2 actually descends from it instead.
	s1b := mkShare("s1b", 1, "s0")
	s2.prev = s1b.hash // re-point s2's claimed parent to s1b for this scenario

	got := s.Append(s1b)
	if !got {
		t.Fatalf("Append(s1b) = false, want true (promoted, has a descendant)")
	}
	atOne := s.AtHeight(1)
	if atOne[0].Hash() != s1b.Hash() {
		t.Fatalf("height 1 main-chain share = %v, want s1b", atOne[0].Hash())
	}
	if len(orphaned) != 1 || orphaned[0].Hash() != s1a.Hash() {
		t.Fatalf("orphaned = %v, want [s1a]", orphaned)
	}
}

func TestCleanDeprecationsEvictsOldestHeight(t *testing.T) {
	s := New()
	chain := chainOf(MaxChainLength+2, 0)
	for _, sh := range chain {
		s.Append(sh)
	}
	if s.Has(chain[0].Hash()) {
		t.Fatalf("height 0 should have been evicted once window exceeded MaxChainLength")
	}
	if s.Oldest().AbsHeight() == 0 {
		t.Fatalf("oldest height should have advanced past 0")
	}
	if s.Newest().AbsHeight()-s.Oldest().AbsHeight() >= MaxChainLength {
		t.Fatalf("window did not shrink back under MaxChainLength")
	}
}

func TestVerifyLatchesChainCalculatableOnce(t *testing.T) {
	var fired int
	s := New()
	s.Observers.OnChainCalculatable(func() { fired++ })

	chain := chainOf(BaseChainLength, 0)
	for _, sh := range chain {
		s.Append(sh)
	}
	if got := s.Verify(); !got {
		t.Fatalf("Verify() = false, want true for a fully linked chain")
	}
	if !s.Calculatable() {
		t.Fatalf("Calculatable() = false after a BaseChainLength-deep verified chain")
	}
	if fired != 1 {
		t.Fatalf("chainCalculatable fired %d times, want 1", fired)
	}

	s.Append(mkShare(fmt.Sprintf("s%d", BaseChainLength), BaseChainLength, fmt.Sprintf("s%d", BaseChainLength-1)))
	s.Verify()
	if fired != 1 {
		t.Fatalf("chainCalculatable fired %d times after a second verify, want still 1", fired)
	}
}

func TestVerifyDetectsBrokenLink(t *testing.T) {
	s := New()
	s.Append(mkShare("s0", 0, ""))
	s.Append(mkShare("s1", 1, "s0"))
	// s2 claims a parent hash that isn't actually s1.
	broken := mkShare("s2", 2, "not-s1")
	s.Append(broken)

	if got := s.Verify(); got {
		t.Fatalf("Verify() = true, want false for a chain with a broken parent link")
	}
}

func TestCheckGapsReportsTerminalGapBelowBaseChainLength(t *testing.T) {
	s := New()
	chain := chainOf(5, 100) // window far shorter than BaseChainLength
	for _, sh := range chain {
		s.Append(sh)
	}

	gaps := s.CheckGaps()
	if len(gaps) != 1 {
		t.Fatalf("CheckGaps() = %v, want exactly the terminal gap", gaps)
	}
	want := Gap{
		Descendent:       chain[0].Hash(),
		DescendentHeight: 100,
		Length:           BaseChainLength - 5,
	}
	if gaps[0] != want {
		t.Fatalf("terminal gap = %+v, want %+v", gaps[0], want)
	}
}

func TestSubchainWalksMainChainBackward(t *testing.T) {
	s := New()
	chain := chainOf(5, 0)
	for _, sh := range chain {
		s.Append(sh)
	}

	got := s.Subchain(chain[4].Hash(), 3, Backward)
	want := []Share{chain[4], chain[3], chain[2]}
	if len(got) != len(want) {
		t.Fatalf("Subchain length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Hash() != want[i].Hash() {
			t.Fatalf("Subchain[%d] = %v, want %v", i, got[i].Hash(), want[i].Hash())
		}
	}
}

func TestSubchainStopsAtUnknownStart(t *testing.T) {
	s := New()
	s.Append(mkShare("s0", 0, ""))
	if got := s.Subchain(mustHash("nope"), 3, Backward); got != nil {
		t.Fatalf("Subchain(unknown start) = %v, want nil", got)
	}
}

func TestStatsReflectsWindow(t *testing.T) {
	s := New()
	chain := chainOf(3, 10)
	for _, sh := range chain {
		s.Append(sh)
	}
	stats := s.Stats()
	if stats.NewestHeight != 12 || stats.OldestHeight != 10 || stats.WindowHeights != 3 {
		t.Fatalf("Stats() = %+v, want NewestHeight=12 OldestHeight=10 WindowHeights=3", stats)
	}
}

func TestAtHeightUnknownReturnsNil(t *testing.T) {
	s := New()
	s.Append(mkShare("s0", 0, ""))
	s.Append(mkShare("s1", 1, "s0"))
	if !reflect.DeepEqual(s.AtHeight(2), []Share(nil)) {
		t.Fatalf("AtHeight(unknown) = %v, want nil", s.AtHeight(2))
	}
}

// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// pendingKey derives the sha256("descendent-length") dedup key used to
// deduplicate outstanding share requests.
func pendingKey(descendent chainhash.Hash, length uint32) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", descendent.String(), length)))
	return hex.EncodeToString(sum[:])
}

// pendingSet tracks outstanding sharereq keys so a gap already requested
// isn't requested again before it is answered.
type pendingSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newPendingSet() *pendingSet {
	return &pendingSet{keys: make(map[string]struct{})}
}

// addIfAbsent records key and reports true if it was not already present.
func (s *pendingSet) addIfAbsent(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *pendingSet) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

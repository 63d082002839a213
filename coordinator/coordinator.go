// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coordinator implements the peer coordinator: the component that
// accepts inbound connections, dials outbound ones, owns the shared
// known-tx / mining-tx views, and routes share-chain store events to
// outbound share requests and broadcasts. It is the glue between package
// peer and package sharechain: an accept loop, a per-connection goroutine
// per peer, and a mutex-guarded peer map routing share/tx relay the way a
// full node routes block/inv relay.
package coordinator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/math/uint256"
	"github.com/sharepool/sharenode/peer"
	"github.com/sharepool/sharenode/sharechain"
	"github.com/sharepool/sharenode/wire"
)

// Share-request fan-out bounds.
const (
	maxShareReqPeers        = 8
	legacyParentsLimit      = 79
	js2poolParentsLimit     = 250
	legacyReplyParentsCap   = 100
	js2poolReplyParentsCap  = 500
	maxShareReqHashesDivide = 500
	knownTxsCacheCapacity   = 10
)

// SharePersister is the external durable-archive collaborator. Saves are
// fire-and-forget: the coordinator does not wait for or react to
// completion.
type SharePersister interface {
	SaveShares(shares []sharechain.Share)
}

// Config carries the coordinator's static settings.
type Config struct {
	Magic      wire.ProtocolMagic
	ListenAddr string
	MaxConn    uint32
	SeedPeers  []string
	ProxyAddr  string
	LocalPort  uint16
}

// Coordinator owns the listening socket, the outbound connection set, and
// the shared tx views.
type Coordinator struct {
	cfg         Config
	store       *sharechain.Store
	constructor sharechain.Constructor
	persister   SharePersister
	dial        dialer

	listener net.Listener

	peersMu sync.Mutex
	peers   map[*peer.Peer]struct{}

	knownTxs       *txView
	miningTxs      *txView
	knownTxsCaches *txCacheRing
	pending        *pendingSet
	addrs          *addrBook

	reqMu    sync.Mutex
	reqIndex map[string]string

	listenOnce sync.Once
	canListen  chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a Coordinator around store. It does not start listening or
// dialing; Start begins listening once the store's chain is calculatable.
func New(cfg Config, store *sharechain.Store, constructor sharechain.Constructor, persister SharePersister) *Coordinator {
	d := plainDialer()
	if cfg.ProxyAddr != "" {
		d = socksDialer(cfg.ProxyAddr)
	}

	c := &Coordinator{
		cfg:            cfg,
		store:          store,
		constructor:    constructor,
		persister:      persister,
		dial:           d,
		peers:          make(map[*peer.Peer]struct{}),
		knownTxs:       newTxView(),
		miningTxs:      newTxView(),
		knownTxsCaches: newTxCacheRing(knownTxsCacheCapacity),
		pending:        newPendingSet(),
		addrs:          newAddrBook(),
		reqIndex:       make(map[string]string),
		canListen:      make(chan struct{}),
		stopCh:         make(chan struct{}),
	}

	c.wireTxViewObservers()
	c.wireChainObservers()
	return c
}

// wireTxViewObservers wires up the knownTxs and miningTxs view-change
// observers.
func (c *Coordinator) wireTxViewObservers() {
	c.knownTxs.OnReplace(func(_, _ txMap, added, removed []wire.TransactionTemplate) {
		if len(added) > 0 {
			hashes := make([]chainhash.Hash, len(added))
			for i, t := range added {
				hashes[i] = t.Hash
			}
			c.broadcast(func(p *peer.Peer) { _ = p.SendHaveTx(hashes) }, nil)
		}
		if len(removed) > 0 {
			hashes := make([]chainhash.Hash, len(removed))
			for i, t := range removed {
				hashes[i] = t.Hash
			}
			c.broadcast(func(p *peer.Peer) { _ = p.SendLosingTx(hashes) }, nil)
			c.knownTxsCaches.push(removed)
		}
	})

	c.miningTxs.OnReplace(func(_, _ txMap, added, removed []wire.TransactionTemplate) {
		if len(added) > 0 {
			c.forEachPeer(func(p *peer.Peer) {
				var hashes []chainhash.Hash
				var inline []wire.TransactionTemplate
				for _, t := range added {
					if p.RemoteHasTx(t.Hash) {
						hashes = append(hashes, t.Hash)
					} else {
						inline = append(inline, t)
					}
				}
				if len(hashes) > 0 || len(inline) > 0 {
					_ = p.SendRememberTx(hashes, inline)
				}
			})
		}
		if len(removed) > 0 {
			hashes := make([]chainhash.Hash, len(removed))
			var totalSize uint32
			for i, t := range removed {
				hashes[i] = t.Hash
				totalSize += uint32(len(t.Data)) / 2
			}
			c.broadcast(func(p *peer.Peer) { _ = p.SendForgetTx(hashes, totalSize) }, nil)
		}
	})
}

// wireChainObservers wires up the chain-store integration.
func (c *Coordinator) wireChainObservers() {
	c.store.Observers.OnGapsFound(c.handleGapsFound)
	c.store.Observers.OnOrphansFound(func(orphans []sharechain.Share) {
		log.Debugf("orphaned %d share(s)", len(orphans))
	})
	c.store.Observers.OnDeadArrived(func(s sharechain.Share) {
		log.Debugf("dead share arrived: %s", s.Hash())
	})
	c.store.Observers.OnCandidateArrived(func(s sharechain.Share) {
		log.Debugf("candidate share arrived: %s", s.Hash())
	})
	c.store.Observers.OnNewestChanged(func(s sharechain.Share) {
		log.Debugf("new chain tip: %s at height %d", s.Hash(), s.AbsHeight())
	})
	c.store.Observers.OnChainCalculatable(func() {
		c.listenOnce.Do(func() { close(c.canListen) })
	})
}

// handleGapsFound sends sharereq to up to maxShareReqPeers peers for every
// gap not already outstanding, js2pool peers first so the larger-bound
// peers are asked before the limited ones.
func (c *Coordinator) handleGapsFound(gaps []sharechain.Gap) {
	gaps = shuffleGaps(gaps)
	peers := c.sortedPeersJs2PoolFirst()

	for _, g := range gaps {
		key := pendingKey(g.Descendent, g.Length)
		if !c.pending.addIfAbsent(key) {
			continue
		}
		targets := peers
		if len(targets) > maxShareReqPeers {
			targets = targets[:maxShareReqPeers]
		}
		for _, p := range targets {
			limit := g.Length
			if p.IsJs2Pool() {
				if limit > js2poolParentsLimit {
					limit = js2poolParentsLimit
				}
			} else if limit > legacyParentsLimit {
				limit = legacyParentsLimit
			}
			id := randomUint256()
			c.trackRequest(id, key)
			req := &wire.MsgShareReq{
				ID:      id,
				Hashes:  []chainhash.Hash{g.Descendent},
				Parents: limit,
			}
			_ = p.SendShareReq(req)
		}
	}
}

// Start runs the accept loop once the chain store reports calculatable:
// the node does not accept peers while its chain is still being
// assembled. It blocks until then (or until ctx is done or Stop is
// called), binds the listener, starts the accept loop in its own
// goroutine and returns without waiting for it.
func (c *Coordinator) Start(ctx context.Context) error {
	select {
	case <-c.canListen:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopCh:
		return nil
	}

	ln, err := net.Listen("tcp", c.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("coordinator: bind %s: %w", c.cfg.ListenAddr, err)
	}
	c.listener = ln

	go c.acceptLoop(ctx)
	return nil
}

func (c *Coordinator) acceptLoop(ctx context.Context) {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			log.Errorf("accept: %v", err)
			return
		}
		if uint32(c.peerCount()) >= c.cfg.MaxConn && c.cfg.MaxConn > 0 {
			conn.Close()
			continue
		}
		p := peer.New(conn, false, peer.Config{Magic: c.cfg.Magic})
		c.registerPeer(p)
		go c.runPeer(p)
	}
}

// Stop closes the listener and every connected peer.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if c.listener != nil {
			c.listener.Close()
		}
		c.peersMu.Lock()
		peers := make([]*peer.Peer, 0, len(c.peers))
		for p := range c.peers {
			peers = append(peers, p)
		}
		c.peersMu.Unlock()
		for _, p := range peers {
			p.Close()
		}
	})
}

// initPeers dials every seed address, registering and sending our initial
// version on success.
func (c *Coordinator) initPeers(ctx context.Context, ourBestShareHash chainhash.Hash) {
	for _, addr := range c.cfg.SeedPeers {
		go c.dialWithBackoff(ctx, addr, ourBestShareHash)
	}
}

func (c *Coordinator) dialWithBackoff(ctx context.Context, addr string, ourBestShareHash chainhash.Hash) {
	backoff := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		conn, err := c.dial(ctx, "tcp", addr)
		if err != nil {
			backoff = nextBackoff(backoff)
			log.Debugf("dial %s failed, retrying in %s: %v", addr, backoff, err)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			}
		}

		p := peer.New(conn, true, peer.Config{Magic: c.cfg.Magic})
		c.registerPeer(p)
		_ = p.SendVersion(&wire.MsgVersion{
			SubVersion:    "sharenode/1.0.0",
			BestShareHash: ourBestShareHash,
		})
		c.runPeer(p) // blocks until this connection ends

		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}
		backoff = 0 // the connection lived; reconnect promptly once it drops
		continue
	}
}

func (c *Coordinator) registerPeer(p *peer.Peer) {
	c.wirePeerEvents(p)
	c.peersMu.Lock()
	c.peers[p] = struct{}{}
	c.peersMu.Unlock()
}

func (c *Coordinator) unregisterPeer(p *peer.Peer) {
	c.peersMu.Lock()
	delete(c.peers, p)
	c.peersMu.Unlock()
}

func (c *Coordinator) runPeer(p *peer.Peer) {
	defer c.unregisterPeer(p)
	p.Run()
}

// PeerCount returns the number of currently connected peers, for status
// reporting by an embedder (e.g. statusrv).
func (c *Coordinator) PeerCount() int { return c.peerCount() }

func (c *Coordinator) peerCount() int {
	c.peersMu.Lock()
	defer c.peersMu.Unlock()
	return len(c.peers)
}

func (c *Coordinator) forEachPeer(f func(*peer.Peer)) {
	c.peersMu.Lock()
	peers := make([]*peer.Peer, 0, len(c.peers))
	for p := range c.peers {
		peers = append(peers, p)
	}
	c.peersMu.Unlock()
	for _, p := range peers {
		f(p)
	}
}

// broadcast runs f against every connected peer except skip (nil skips
// none).
func (c *Coordinator) broadcast(f func(*peer.Peer), skip *peer.Peer) {
	c.forEachPeer(func(p *peer.Peer) {
		if p == skip {
			return
		}
		f(p)
	})
}

func (c *Coordinator) sortedPeersJs2PoolFirst() []*peer.Peer {
	c.peersMu.Lock()
	peers := make([]*peer.Peer, 0, len(c.peers))
	for p := range c.peers {
		peers = append(peers, p)
	}
	c.peersMu.Unlock()
	sort.SliceStable(peers, func(i, j int) bool {
		return peers[i].IsJs2Pool() && !peers[j].IsJs2Pool()
	})
	return peers
}

func shuffleGaps(gaps []sharechain.Gap) []sharechain.Gap {
	out := make([]sharechain.Gap, len(gaps))
	copy(out, gaps)
	for i := len(out) - 1; i > 0; i-- {
		j := randomIntn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func randomIntn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// trackRequest records which pendingSet key an outgoing sharereq's ID
// corresponds to, so the matching sharereply -- which carries back only the
// ID, not the original descendent/length pair -- can clear the right entry.
func (c *Coordinator) trackRequest(id uint256.Uint256, key string) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	c.reqIndex[uint256Key(id)] = key
}

// resolveRequest looks up and removes the pendingSet key tracked for id.
func (c *Coordinator) resolveRequest(id uint256.Uint256) (string, bool) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	k := uint256Key(id)
	key, ok := c.reqIndex[k]
	if ok {
		delete(c.reqIndex, k)
	}
	return key, ok
}

func uint256Key(id uint256.Uint256) string {
	b := id.Bytes()
	return hex.EncodeToString(b[:])
}

func randomUint256() uint256.Uint256 {
	var buf [32]byte
	_, _ = rand.Read(buf[:])
	var id uint256.Uint256
	id.SetBytesLE(&buf)
	return id
}

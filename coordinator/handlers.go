// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"net"
	"strconv"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/sharepool/sharenode/peer"
	"github.com/sharepool/sharenode/sharechain"
	"github.com/sharepool/sharenode/wire"
)

// wirePeerEvents subscribes the coordinator's handlers to every event a
// newly registered Peer can fire.
func (c *Coordinator) wirePeerEvents(p *peer.Peer) {
	p.Events.OnVersion(c.handleVersion)
	p.Events.OnGetAddrs(c.handleGetAddrs)
	p.Events.OnAddrs(c.handleAddrs)
	p.Events.OnShares(c.handleShares)
	p.Events.OnShareReq(c.handleShareReq)
	p.Events.OnShareReply(c.handleShareReply)
	p.Events.OnRememberTx(c.handleRememberTx)
	p.Events.OnBadPeer(func(pp *peer.Peer, reason string) {
		log.Debugf("peer %s disconnected: %s", pp.RemoteAddr(), reason)
	})
	p.Events.OnEnd(func(pp *peer.Peer) {
		log.Debugf("peer %s connection ended", pp.RemoteAddr())
	})
}

// handleVersion reacts to an incoming version: describe our tx inventory,
// hand over our mining set, and -- unless the peer's best-share-hash is the
// zero hash or we already have it -- ask for it.
func (c *Coordinator) handleVersion(p *peer.Peer, m *wire.MsgVersion) {
	known := c.knownTxs.Snapshot().values()
	hashes := make([]chainhash.Hash, len(known))
	for i, t := range known {
		hashes[i] = t.Hash
	}
	_ = p.SendHaveTx(hashes)
	_ = p.SendRememberTx(nil, c.miningTxs.Snapshot().values())

	if !wire.IsZeroHash(m.BestShareHash) && !c.store.Has(m.BestShareHash) {
		id := randomUint256()
		_ = p.SendShareReq(&wire.MsgShareReq{
			ID:      id,
			Hashes:  []chainhash.Hash{m.BestShareHash},
			Parents: 1,
		})
	}
}

func (c *Coordinator) handleGetAddrs(p *peer.Peer, m *wire.MsgGetAddrs) {
	count := m.Count
	if count > wire.MaxAddrsPerMsg {
		count = wire.MaxAddrsPerMsg
	}
	var addrs []wire.NetAddress
	c.forEachPeer(func(pp *peer.Peer) {
		if pp == p || !pp.Outbound() || uint32(len(addrs)) >= count {
			return
		}
		tcpAddr, ok := pp.RemoteAddr().(*net.TCPAddr)
		if !ok || tcpAddr.Port == 0 {
			return
		}
		addrs = append(addrs, wire.NetAddress{IP: tcpAddr.IP, Port: uint16(tcpAddr.Port)})
	})
	_ = p.SendAddrs(addrs)
}

// handleAddrs implements the supplemented addrs-gossip feature: addresses
// not seen before are opportunistically dialed, bounded by MaxConn. It
// does not retry; dialWithBackoff already covers reconnect for seed
// peers, and a gossiped address that fails to connect once is simply
// dropped rather than chased.
func (c *Coordinator) handleAddrs(p *peer.Peer, m *wire.MsgAddrs) {
	for _, a := range m.AddrList {
		if c.addrs.noteAndCheck(a) {
			continue
		}
		if c.cfg.MaxConn > 0 && uint32(c.peerCount()) >= c.cfg.MaxConn {
			continue
		}
		addr := net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
		go c.dialOnce(addr)
	}
}

func (c *Coordinator) dialOnce(addr string) {
	conn, err := c.dial(context.Background(), "tcp", addr)
	if err != nil {
		log.Debugf("gossip dial %s failed: %v", addr, err)
		return
	}
	p := peer.New(conn, true, peer.Config{Magic: c.cfg.Magic})
	c.registerPeer(p)
	_ = p.SendVersion(&wire.MsgVersion{
		SubVersion:    "sharenode/1.0.0",
		BestShareHash: c.bestShareHash(),
	})
	go c.runPeer(p)
}

func (c *Coordinator) bestShareHash() chainhash.Hash {
	if newest := c.store.Newest(); newest != nil {
		return newest.Hash()
	}
	return chainhash.Hash{}
}

// resolveTx looks up one of a share's newly-referenced transactions by
// trying, in order, our known-tx set, the sender's remembered-tx set, and
// our recently-evicted tx caches. The mining set and the sender's raw
// remote-tx-hash bookkeeping are deliberately not consulted here: they are
// preserved as genuine no-ops rather than widened into lookups that were
// never exercised upstream.
func (c *Coordinator) resolveTx(sender *peer.Peer, hash chainhash.Hash) (wire.TransactionTemplate, bool) {
	if t, ok := c.knownTxs.Snapshot().findByHashOrTxid(hash); ok {
		return t, true
	}
	if t, ok := sender.FindRemembered(hash); ok {
		return t, true
	}
	return c.knownTxsCaches.findByHash(hash)
}

// handleShares handles an incoming batch of shares.
func (c *Coordinator) handleShares(sender *peer.Peer, m *wire.MsgShares) {
	if len(m.Shares) == 0 {
		return
	}

	decoded := make([]sharechain.Share, 0, len(m.Shares))
	allKnown := true
	for _, w := range m.Shares {
		s, err := c.constructor.NewShare(w.Version, w.Contents)
		if err != nil {
			log.Debugf("dropping undecodable share from %s: %v", sender.RemoteAddr(), err)
			continue
		}
		decoded = append(decoded, s)
		if !c.store.Has(s.Hash()) {
			allKnown = false
		}
	}
	if allKnown {
		return
	}

	var resolved []wire.TransactionTemplate
shareLoop:
	for _, s := range decoded {
		if !s.Valid() {
			continue
		}
		for _, txHash := range s.NewTransactionHashes() {
			tmpl, ok := c.resolveTx(sender, txHash)
			if !ok {
				log.Debugf("peer %s referenced unknown transaction %s", sender.RemoteAddr(), txHash)
				continue shareLoop
			}
			resolved = append(resolved, tmpl)
		}
	}

	for _, s := range decoded {
		c.store.Append(s)
	}
	c.persister.SaveShares(decoded)

	if len(resolved) > 0 {
		next := c.knownTxs.Snapshot()
		for _, t := range resolved {
			next = next.put(t)
		}
		c.knownTxs.Replace(next)
	}

	c.broadcast(func(p *peer.Peer) { _ = p.SendShares(m.Shares) }, sender)
	c.store.Verify()
}

// handleShareReq replies to a peer asking for a chain of shares walking
// backward from one or more hashes, bounded by the requester's capability
// and parent count.
func (c *Coordinator) handleShareReq(sender *peer.Peer, m *wire.MsgShareReq) {
	n := uint32(len(m.Hashes))
	if n == 0 {
		n = 1
	}
	replyCap := uint32(legacyReplyParentsCap)
	if sender.IsJs2Pool() {
		replyCap = js2poolReplyParentsCap
	}
	limit := minUint32(m.Parents, maxShareReqHashesDivide/n, replyCap)

	stops := make(map[chainhash.Hash]struct{}, len(m.Stops))
	for _, h := range m.Stops {
		stops[h] = struct{}{}
	}

	var collected []sharechain.Share
	for _, h := range m.Hashes {
		next := c.store.SubchainFunc(h, int(limit), sharechain.Backward)
		for {
			s, ok := next()
			if !ok {
				break
			}
			if _, stop := stops[s.Hash()]; stop {
				break
			}
			collected = append(collected, s)
		}
	}

	if len(collected) == 0 {
		_ = sender.SendShareReply(&wire.MsgShareReply{ID: m.ID, Result: wire.ShareReplyNotFound})
		return
	}

	wrappers := make([]wire.ShareWrapper, len(collected))
	for i, s := range collected {
		wrappers[i] = wire.ShareWrapper{Version: s.Version(), Contents: s.Contents()}
	}
	_ = sender.SendShareReply(&wire.MsgShareReply{
		ID:     m.ID,
		Result: wire.ShareReplyOK,
		Shares: wrappers,
	})
}

// handleShareReply processes a reply to one of our outstanding sharereqs.
func (c *Coordinator) handleShareReply(sender *peer.Peer, m *wire.MsgShareReply) {
	if m.Result != wire.ShareReplyOK {
		c.store.CheckGaps()
		log.Debugf("sharereply from %s: result=%d", sender.RemoteAddr(), m.Result)
		return
	}

	var fresh []sharechain.Share
	for _, w := range m.Shares {
		s, err := c.constructor.NewShare(w.Version, w.Contents)
		if err != nil || !s.Valid() {
			continue
		}
		if c.store.Has(s.Hash()) {
			continue
		}
		fresh = append(fresh, s)
	}

	if len(fresh) == 0 {
		c.store.CheckGaps()
		return
	}

	for _, s := range fresh {
		c.store.Append(s)
	}
	c.persister.SaveShares(fresh)

	if key, ok := c.resolveRequest(m.ID); ok {
		c.pending.remove(key)
	}

	c.store.CheckGaps()
	c.store.Verify()
}

// handleRememberTx resolves each referenced transaction hash and records
// it, along with any inline transactions, in the sender's remembered set.
func (c *Coordinator) handleRememberTx(sender *peer.Peer, m *wire.MsgRememberTx) {
	for _, h := range m.Hashes {
		tmpl, ok := c.knownTxs.Snapshot().findByHashOrTxid(h)
		if !ok {
			tmpl, ok = c.knownTxsCaches.findByHash(h)
		}
		if !ok {
			sender.Reject("remembered unknown transaction")
			return
		}
		if !sender.RememberTx(tmpl) {
			sender.Reject("duplicate transaction reference")
			return
		}
	}

	for _, t := range m.Txs {
		if !sender.RememberTx(t) {
			sender.Reject("duplicate transaction reference")
			return
		}
		c.knownTxs.Replace(c.knownTxs.Snapshot().put(t))
	}
}

// UpdateMiningTemplate rebuilds miningTxs from transactions and merges it
// into knownTxs.
func (c *Coordinator) UpdateMiningTemplate(transactions []wire.TransactionTemplate) {
	next := make(txMap, len(transactions))
	for _, t := range transactions {
		next[t.Key()] = t
	}
	c.miningTxs.Replace(next)
	c.knownTxs.Replace(c.knownTxs.Snapshot().merge(next))
}

// RemoveDeprecatedTxs drops each of txs from knownTxs unless still present
// in miningTxs, and from every peer's rememberedTxs.
func (c *Coordinator) RemoveDeprecatedTxs(txs []wire.TransactionTemplate) {
	mining := c.miningTxs.Snapshot()
	drop := make(map[string]struct{}, len(txs))
	for _, t := range txs {
		if _, stillMining := mining[t.Key()]; stillMining {
			continue
		}
		drop[t.Key()] = struct{}{}
	}
	if len(drop) > 0 {
		c.knownTxs.Replace(c.knownTxs.Snapshot().without(drop))
	}
	c.forEachPeer(func(p *peer.Peer) {
		for _, t := range txs {
			p.ForgetRemembered(t.Key())
		}
	})
}

func minUint32(vals ...uint32) uint32 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

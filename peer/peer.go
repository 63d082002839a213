// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements the per-connection share-chain peer state
// machine: one instance per TCP link, running a framing read loop over
// package wire and dispatching decoded messages to registered Events
// callbacks, with handshake state recording, a single read-loop goroutine
// (writes run on the caller's goroutine, serialised by a mutex), and
// idempotent shutdown, narrowed to the share-chain
// protocol's thirteen message types.
package peer

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/sharepool/sharenode/wire"
)

// DefaultIdleTimeout is the idle read timeout armed on connect/accept and
// rearmed after every frame.
const DefaultIdleTimeout = 10 * time.Second

// MaxRemoteTxHashes bounds remoteTxHashs.
const MaxRemoteTxHashes = 10

// js2poolSubVersionPrefix marks a peer as capable of the larger
// request/reply bounds, the js2pool capability.
const js2poolSubVersionPrefix = "js2pool"

// Config carries the per-peer settings supplied by the coordinator.
type Config struct {
	// Magic is the network's frame magic; mismatches are a protocol
	// error handled inside package wire.
	Magic wire.ProtocolMagic

	// IdleTimeout overrides DefaultIdleTimeout when non-zero.
	IdleTimeout time.Duration
}

// Peer owns one TCP connection and its per-connection state: the remote's
// advertised tx inventory, the txs it has asked us to remember, and its
// externally-observed capability flags.
type Peer struct {
	cfg      Config
	conn     net.Conn
	reader   *bufio.Reader
	outbound bool

	Events Events

	writeMu sync.Mutex

	mu              sync.Mutex
	externalAddress net.IP
	externalPort    uint16
	knownPeerPort   uint16
	isJs2PoolPeer   bool
	remoteTxHashs   *fifoHashSet
	rememberedTxs   map[string]wire.TransactionTemplate

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps conn in a Peer. outbound marks a connection this node dialed,
// as opposed to one accepted on the listener.
func New(conn net.Conn, outbound bool, cfg Config) *Peer {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	var knownPort uint16
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		knownPort = uint16(tcpAddr.Port)
	}

	return &Peer{
		cfg:           cfg,
		conn:          conn,
		reader:        bufio.NewReader(conn),
		outbound:      outbound,
		knownPeerPort: knownPort,
		remoteTxHashs: newFIFOHashSet(MaxRemoteTxHashes),
		rememberedTxs: make(map[string]wire.TransactionTemplate),
		closed:        make(chan struct{}),
	}
}

// Outbound reports whether this node dialed the connection.
func (p *Peer) Outbound() bool { return p.outbound }

// RemoteAddr returns the underlying connection's remote address.
func (p *Peer) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }

// IsJs2Pool reports whether the peer's version sub-version string granted
// it the larger js2pool request/reply bounds.
func (p *Peer) IsJs2Pool() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isJs2PoolPeer
}

// ExternalAddress returns the address and port the peer told us it sees us
// as, recorded from the version handshake's AddrTo field.
func (p *Peer) ExternalAddress() (net.IP, uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.externalAddress, p.externalPort
}

// RemoteHasTx reports whether the peer has advertised hash via have_tx and
// it has not since been evicted or withdrawn.
func (p *Peer) RemoteHasTx(hash chainhash.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remoteTxHashs.has(hash)
}

// RememberTx records that the peer asked us to remember t, keyed by
// t.Key(). It reports false if the key was already present -- the
// coordinator treats a duplicate remember_tx reference as a protocol
// violation.
func (p *Peer) RememberTx(t wire.TransactionTemplate) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := t.Key()
	if _, dup := p.rememberedTxs[key]; dup {
		return false
	}
	p.rememberedTxs[key] = t
	return true
}

// ResolveRemembered looks up a transaction this peer previously asked us
// to remember.
func (p *Peer) ResolveRemembered(key string) (wire.TransactionTemplate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.rememberedTxs[key]
	return t, ok
}

// FindRemembered scans the txs this peer asked us to remember for one
// whose Hash or Txid equals hash.
func (p *Peer) FindRemembered(hash chainhash.Hash) (wire.TransactionTemplate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.rememberedTxs {
		if t.Hash == hash || t.Txid == hash {
			return t, true
		}
	}
	return wire.TransactionTemplate{}, false
}

// ForgetRemembered drops the tx stored under key from the set of txs this
// peer asked us to remember, used by removeDeprecatedTxs.
func (p *Peer) ForgetRemembered(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rememberedTxs, key)
}

// Closed reports whether the connection has already ended.
func (p *Peer) Closed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// Close ends the connection. It is idempotent and emits End exactly once,
// regardless of how many goroutines call it concurrently.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.conn.Close()
		p.Events.fireEnd(p)
	})
}

// Reject closes the connection for a protocol violation the coordinator
// detected above the peer layer (duplicate or unknown tx reference),
// emitting BadPeer like an internally
// detected violation would.
func (p *Peer) Reject(reason string) { p.badPeer(reason) }

func (p *Peer) badPeer(reason string) {
	log.Debugf("peer %s misbehaved: %s", p.conn.RemoteAddr(), reason)
	p.Events.fireBadPeer(p, reason)
	p.Close()
}

// Run drives the read loop until the connection ends, dispatching each
// decoded frame to the matching Events callback. It blocks; callers run it
// in its own goroutine, one per connection.
func (p *Peer) Run() {
	defer p.Close()

	for {
		if err := p.conn.SetReadDeadline(time.Now().Add(p.cfg.IdleTimeout)); err != nil {
			return
		}

		msg, command, err := wire.ReadMessage(p.reader, p.cfg.Magic)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				p.Events.fireTimeout(p)
				return
			}
			var msgErr *wire.MessageError
			if errors.As(err, &msgErr) {
				switch msgErr.Kind {
				case wire.ErrBadMagic, wire.ErrBadChecksum, wire.ErrMessageDecode:
					p.badPeer(err.Error())
					return
				}
			}
			// Socket error or clean FIN: End fires via the deferred Close
			// above.
			return
		}

		if msg == nil {
			p.Events.fireUnknownCommand(p, command)
			continue
		}

		p.dispatch(msg)
		if p.Closed() {
			return
		}
	}
}

func (p *Peer) dispatch(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.MsgVersion:
		p.handleVersion(m)
	case *wire.MsgPing:
		p.handlePing(m)
	case *wire.MsgPong:
		// Liveness only; no action taken.
	case *wire.MsgAddrs:
		p.Events.fireAddrs(p, m)
	case *wire.MsgAddrMe:
		p.handleAddrMe(m)
	case *wire.MsgGetAddrs:
		p.Events.fireGetAddrs(p, m)
	case *wire.MsgHaveTx:
		p.handleHaveTx(m)
	case *wire.MsgLosingTx:
		p.handleLosingTx(m)
	case *wire.MsgForgetTx:
		p.Events.fireForgetTx(p, m)
	case *wire.MsgRememberTx:
		p.Events.fireRememberTx(p, m)
	case *wire.MsgBestBlock:
		p.Events.fireBestBlock(p, m)
	case *wire.MsgShares:
		p.Events.fireShares(p, m)
	case *wire.MsgShareReq:
		p.Events.fireShareReq(p, m)
	case *wire.MsgShareReply:
		p.Events.fireShareReply(p, m)
	}
}

func (p *Peer) handleVersion(m *wire.MsgVersion) {
	p.mu.Lock()
	p.externalAddress = m.AddrTo.IP
	p.externalPort = m.AddrTo.Port
	p.isJs2PoolPeer = strings.HasPrefix(m.SubVersion, js2poolSubVersionPrefix)
	p.mu.Unlock()
	p.Events.fireVersion(p, m)
}

func (p *Peer) handlePing(m *wire.MsgPing) {
	if p.IsJs2Pool() {
		_ = p.Send(&wire.MsgPong{})
		return
	}
	// A legacy peer's client expects a ping back, not a pong.
	_ = p.Send(&wire.MsgPing{})
}

func (p *Peer) handleAddrMe(m *wire.MsgAddrMe) {
	p.mu.Lock()
	known := p.knownPeerPort
	p.mu.Unlock()
	if known != 0 && m.Port != known {
		p.badPeer("ports are not equal")
		return
	}
	p.Events.fireAddrMe(p, m)
}

func (p *Peer) handleHaveTx(m *wire.MsgHaveTx) {
	p.mu.Lock()
	p.remoteTxHashs.insertBatch(m.Hashes)
	p.mu.Unlock()
	p.Events.fireHaveTx(p, m)
}

func (p *Peer) handleLosingTx(m *wire.MsgLosingTx) {
	p.mu.Lock()
	for _, h := range m.Hashes {
		p.remoteTxHashs.remove(h)
	}
	p.mu.Unlock()
	p.Events.fireLosingTx(p, m)
}

// Send frames msg and writes it to the connection. Callers may invoke it
// from any goroutine; writes are serialised. It is a fire-and-forget
// outbound helper: the returned error is for callers that want to notice a
// dead link, not a required check.
func (p *Peer) Send(msg wire.Message) error {
	if p.Closed() {
		return peerError("Send", ErrClosed, "peer connection already closed")
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return wire.WriteMessage(p.conn, msg, p.cfg.Magic)
}

// SendVersion sends our own handshake message.
func (p *Peer) SendVersion(m *wire.MsgVersion) error { return p.Send(m) }

// SendPing sends an empty ping.
func (p *Peer) SendPing() error { return p.Send(&wire.MsgPing{}) }

// SendPong sends an empty pong.
func (p *Peer) SendPong() error { return p.Send(&wire.MsgPong{}) }

// SendAddrs sends a batch of peer addresses.
func (p *Peer) SendAddrs(addrs []wire.NetAddress) error {
	return p.Send(&wire.MsgAddrs{AddrList: addrs})
}

// SendAddrMe advertises our own listening port.
func (p *Peer) SendAddrMe(port uint16) error {
	return p.Send(&wire.MsgAddrMe{Port: port})
}

// SendGetAddrs requests count peer addresses.
func (p *Peer) SendGetAddrs(count uint32) error {
	return p.Send(&wire.MsgGetAddrs{Count: count})
}

// SendHaveTx advertises hashes as locally known transactions.
func (p *Peer) SendHaveTx(hashes []chainhash.Hash) error {
	return p.Send(&wire.MsgHaveTx{Hashes: hashes})
}

// SendLosingTx withdraws previously advertised hashes.
func (p *Peer) SendLosingTx(hashes []chainhash.Hash) error {
	return p.Send(&wire.MsgLosingTx{Hashes: hashes})
}

// SendForgetTx tells the peer it may drop the named transactions.
func (p *Peer) SendForgetTx(hashes []chainhash.Hash, totalSize uint32) error {
	return p.Send(&wire.MsgForgetTx{Hashes: hashes, TotalSize: totalSize})
}

// SendRememberTx asks the peer to retain the named and inline transactions.
func (p *Peer) SendRememberTx(hashes []chainhash.Hash, txs []wire.TransactionTemplate) error {
	return p.Send(&wire.MsgRememberTx{Hashes: hashes, Txs: txs})
}

// SendBestBlock announces our view of the upstream chain tip.
func (p *Peer) SendBestBlock(headerBytes []byte) error {
	return p.Send(&wire.MsgBestBlock{HeaderBytes: headerBytes})
}

// SendShares broadcasts or replies with a batch of wrapped shares.
func (p *Peer) SendShares(shares []wire.ShareWrapper) error {
	return p.Send(&wire.MsgShares{Shares: shares})
}

// SendShareReq requests ancestors of the named hashes.
func (p *Peer) SendShareReq(m *wire.MsgShareReq) error { return p.Send(m) }

// SendShareReply answers a sharereq.
func (p *Peer) SendShareReply(m *wire.MsgShareReply) error { return p.Send(m) }

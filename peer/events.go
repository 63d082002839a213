// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import "github.com/sharepool/sharenode/wire"

// Events holds the callbacks a Peer fires synchronously from the goroutine
// running its read loop, the same dispatch model sharechain.Observers uses
// and for the same reason: the coordinator needs to react to one frame
// before the next frame from the same peer is processed.
type Events struct {
	Version        []func(p *Peer, msg *wire.MsgVersion)
	Addrs          []func(p *Peer, msg *wire.MsgAddrs)
	AddrMe         []func(p *Peer, msg *wire.MsgAddrMe)
	GetAddrs       []func(p *Peer, msg *wire.MsgGetAddrs)
	HaveTx         []func(p *Peer, msg *wire.MsgHaveTx)
	LosingTx       []func(p *Peer, msg *wire.MsgLosingTx)
	ForgetTx       []func(p *Peer, msg *wire.MsgForgetTx)
	RememberTx     []func(p *Peer, msg *wire.MsgRememberTx)
	BestBlock      []func(p *Peer, msg *wire.MsgBestBlock)
	Shares         []func(p *Peer, msg *wire.MsgShares)
	ShareReq       []func(p *Peer, msg *wire.MsgShareReq)
	ShareReply     []func(p *Peer, msg *wire.MsgShareReply)
	End            []func(p *Peer)
	Timeout        []func(p *Peer)
	BadPeer        []func(p *Peer, reason string)
	UnknownCommand []func(p *Peer, command string)
}

// OnVersion registers f to run when a version message arrives.
func (e *Events) OnVersion(f func(*Peer, *wire.MsgVersion)) { e.Version = append(e.Version, f) }

// OnAddrs registers f to run when an addrs message arrives.
func (e *Events) OnAddrs(f func(*Peer, *wire.MsgAddrs)) { e.Addrs = append(e.Addrs, f) }

// OnAddrMe registers f to run when a well-formed addrme message arrives.
func (e *Events) OnAddrMe(f func(*Peer, *wire.MsgAddrMe)) { e.AddrMe = append(e.AddrMe, f) }

// OnGetAddrs registers f to run when a getaddrs message arrives.
func (e *Events) OnGetAddrs(f func(*Peer, *wire.MsgGetAddrs)) { e.GetAddrs = append(e.GetAddrs, f) }

// OnHaveTx registers f to run when a have_tx message arrives.
func (e *Events) OnHaveTx(f func(*Peer, *wire.MsgHaveTx)) { e.HaveTx = append(e.HaveTx, f) }

// OnLosingTx registers f to run when a losing_tx message arrives.
func (e *Events) OnLosingTx(f func(*Peer, *wire.MsgLosingTx)) { e.LosingTx = append(e.LosingTx, f) }

// OnForgetTx registers f to run when a forget_tx message arrives.
func (e *Events) OnForgetTx(f func(*Peer, *wire.MsgForgetTx)) { e.ForgetTx = append(e.ForgetTx, f) }

// OnRememberTx registers f to run when a remember_tx message arrives.
func (e *Events) OnRememberTx(f func(*Peer, *wire.MsgRememberTx)) {
	e.RememberTx = append(e.RememberTx, f)
}

// OnBestBlock registers f to run when a bestblock message arrives.
func (e *Events) OnBestBlock(f func(*Peer, *wire.MsgBestBlock)) { e.BestBlock = append(e.BestBlock, f) }

// OnShares registers f to run when a shares message arrives.
func (e *Events) OnShares(f func(*Peer, *wire.MsgShares)) { e.Shares = append(e.Shares, f) }

// OnShareReq registers f to run when a sharereq message arrives.
func (e *Events) OnShareReq(f func(*Peer, *wire.MsgShareReq)) { e.ShareReq = append(e.ShareReq, f) }

// OnShareReply registers f to run when a sharereply message arrives.
func (e *Events) OnShareReply(f func(*Peer, *wire.MsgShareReply)) {
	e.ShareReply = append(e.ShareReply, f)
}

// OnEnd registers f to run exactly once, when the peer's connection ends.
func (e *Events) OnEnd(f func(*Peer)) { e.End = append(e.End, f) }

// OnTimeout registers f to run when the peer's idle timer expires.
func (e *Events) OnTimeout(f func(*Peer)) { e.Timeout = append(e.Timeout, f) }

// OnBadPeer registers f to run when the peer is disconnected for protocol
// misbehaviour.
func (e *Events) OnBadPeer(f func(*Peer, string)) { e.BadPeer = append(e.BadPeer, f) }

// OnUnknownCommand registers f to run when a frame names a command this
// codec does not recognise.
func (e *Events) OnUnknownCommand(f func(*Peer, string)) {
	e.UnknownCommand = append(e.UnknownCommand, f)
}

func (e *Events) fireVersion(p *Peer, m *wire.MsgVersion) {
	for _, f := range e.Version {
		f(p, m)
	}
}

func (e *Events) fireAddrs(p *Peer, m *wire.MsgAddrs) {
	for _, f := range e.Addrs {
		f(p, m)
	}
}

func (e *Events) fireAddrMe(p *Peer, m *wire.MsgAddrMe) {
	for _, f := range e.AddrMe {
		f(p, m)
	}
}

func (e *Events) fireGetAddrs(p *Peer, m *wire.MsgGetAddrs) {
	for _, f := range e.GetAddrs {
		f(p, m)
	}
}

func (e *Events) fireHaveTx(p *Peer, m *wire.MsgHaveTx) {
	for _, f := range e.HaveTx {
		f(p, m)
	}
}

func (e *Events) fireLosingTx(p *Peer, m *wire.MsgLosingTx) {
	for _, f := range e.LosingTx {
		f(p, m)
	}
}

func (e *Events) fireForgetTx(p *Peer, m *wire.MsgForgetTx) {
	for _, f := range e.ForgetTx {
		f(p, m)
	}
}

func (e *Events) fireRememberTx(p *Peer, m *wire.MsgRememberTx) {
	for _, f := range e.RememberTx {
		f(p, m)
	}
}

func (e *Events) fireBestBlock(p *Peer, m *wire.MsgBestBlock) {
	for _, f := range e.BestBlock {
		f(p, m)
	}
}

func (e *Events) fireShares(p *Peer, m *wire.MsgShares) {
	for _, f := range e.Shares {
		f(p, m)
	}
}

func (e *Events) fireShareReq(p *Peer, m *wire.MsgShareReq) {
	for _, f := range e.ShareReq {
		f(p, m)
	}
}

func (e *Events) fireShareReply(p *Peer, m *wire.MsgShareReply) {
	for _, f := range e.ShareReply {
		f(p, m)
	}
}

func (e *Events) fireEnd(p *Peer) {
	for _, f := range e.End {
		f(p)
	}
}

func (e *Events) fireTimeout(p *Peer) {
	for _, f := range e.Timeout {
		f(p)
	}
}

func (e *Events) fireBadPeer(p *Peer, reason string) {
	for _, f := range e.BadPeer {
		f(p, reason)
	}
}

func (e *Events) fireUnknownCommand(p *Peer, command string) {
	for _, f := range e.UnknownCommand {
		f(p, command)
	}
}

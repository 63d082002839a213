// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"net"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/math/uint256"
)

// mustParseHash converts s into a chainhash.Hash and panics on error. It
// only differs from chainhash.NewHashFromStr in that it panics, so that
// mistakes in hard-coded test fixtures are caught immediately.
func mustParseHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic("invalid hash in source file: " + s)
	}
	return *h
}

// TestMessageRoundTrip exercises BtcEncode followed by BtcDecode for every
// message type this codec defines, confirming encode-then-decode is the
// identity function for representative valid payloads.
func TestMessageRoundTrip(t *testing.T) {
	hashA := mustParseHash("00000000000000000000000000000000000000000000000000000000000001")
	hashB := mustParseHash("00000000000000000000000000000000000000000000000000000000000002")

	var reqID uint256.Uint256
	reqID.SetUint64(424242)

	tests := []struct {
		name string
		msg  Message
	}{
		{"version", &MsgVersion{
			Services:        1,
			ProtocolVersion: 1,
			SubVersion:      "js2pool/1.0.0",
			AddrTo:          NetAddress{IP: net.ParseIP("1.2.3.4"), Port: 9333},
			AddrFrom:        NetAddress{IP: net.ParseIP("5.6.7.8"), Port: 9334},
			Nonce:           0xdeadbeef,
			BestShareHash:   hashA,
		}},
		{"version empty sub-version", &MsgVersion{
			AddrTo:   NetAddress{IP: net.ParseIP("::1"), Port: 1},
			AddrFrom: NetAddress{IP: net.ParseIP("::1"), Port: 2},
		}},
		{"ping", &MsgPing{}},
		{"pong", &MsgPong{}},
		{"addrs empty", &MsgAddrs{}},
		{"addrs", &MsgAddrs{AddrList: []NetAddress{
			{IP: net.ParseIP("10.0.0.1"), Port: 1},
			{IP: net.ParseIP("10.0.0.2"), Port: 2},
		}}},
		{"addrme", &MsgAddrMe{Port: 9333}},
		{"getaddrs", &MsgGetAddrs{Count: 50}},
		{"have_tx empty", &MsgHaveTx{}},
		{"have_tx", &MsgHaveTx{Hashes: []chainhash.Hash{hashA, hashB}}},
		{"losing_tx", &MsgLosingTx{Hashes: []chainhash.Hash{hashA}}},
		{"forget_tx", &MsgForgetTx{Hashes: []chainhash.Hash{hashA}, TotalSize: 512}},
		{"remember_tx empty", &MsgRememberTx{}},
		{"remember_tx", &MsgRememberTx{
			Hashes: []chainhash.Hash{hashA},
			Txs: []TransactionTemplate{
				{Txid: hashA, Hash: hashB, Data: "deadbeef"},
			},
		}},
		{"bestblock", &MsgBestBlock{HeaderBytes: []byte{1, 2, 3, 4}}},
		{"bestblock empty", &MsgBestBlock{}},
		{"shares empty", &MsgShares{}},
		{"shares", &MsgShares{Shares: []ShareWrapper{
			{Version: 34, Contents: []byte{0xaa, 0xbb}},
		}}},
		{"sharereq empty hashes", &MsgShareReq{ID: reqID, Parents: 1}},
		{"sharereq", &MsgShareReq{
			ID:      reqID,
			Hashes:  []chainhash.Hash{hashA},
			Parents: 250,
			Stops:   []chainhash.Hash{hashB},
		}},
		{"sharereply not found", &MsgShareReply{ID: reqID, Result: ShareReplyNotFound}},
		{"sharereply", &MsgShareReply{
			ID:     reqID,
			Result: ShareReplyOK,
			Shares: []ShareWrapper{{Version: 1, Contents: []byte{1}}},
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := test.msg.BtcEncode(&buf); err != nil {
				t.Fatalf("BtcEncode: unexpected error: %v", err)
			}

			got, err := MakeEmptyMessage(test.msg.Command())
			if err != nil {
				t.Fatalf("MakeEmptyMessage: unexpected error: %v", err)
			}
			if err := got.BtcDecode(bytes.NewReader(buf.Bytes())); err != nil {
				t.Fatalf("BtcDecode: unexpected error: %v", err)
			}

			if !reflect.DeepEqual(got, test.msg) {
				t.Fatalf("round trip mismatch:\ngot:  %s\nwant: %s",
					spew.Sdump(got), spew.Sdump(test.msg))
			}
		})
	}
}

// TestFrameRoundTrip ensures WriteMessage followed by ReadMessage preserves
// (command, payload) with a correct checksum for a sample of message types,
// including the zero-length ping payload boundary case.
func TestFrameRoundTrip(t *testing.T) {
	const magic = ProtocolMagic(0xf9beb4d9)

	msgs := []Message{
		&MsgPing{},
		&MsgGetAddrs{Count: 10},
		&MsgHaveTx{Hashes: []chainhash.Hash{mustParseHash("00000000000000000000000000000000000000000000000000000000000003")}},
	}

	for _, msg := range msgs {
		var buf bytes.Buffer
		if err := WriteMessage(&buf, msg, magic); err != nil {
			t.Fatalf("WriteMessage(%s): unexpected error: %v", msg.Command(), err)
		}

		got, command, err := ReadMessage(&buf, magic)
		if err != nil {
			t.Fatalf("ReadMessage(%s): unexpected error: %v", msg.Command(), err)
		}
		if command != msg.Command() {
			t.Fatalf("ReadMessage: got command %q, want %q", command, msg.Command())
		}
		if !reflect.DeepEqual(got, msg) {
			t.Fatalf("ReadMessage round trip mismatch:\ngot:  %s\nwant: %s",
				spew.Sdump(got), spew.Sdump(msg))
		}
	}
}

// TestFrameBadMagic ensures a frame whose magic does not match the expected
// network magic is rejected without attempting to decode the payload.
func TestFrameBadMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, &MsgPing{}, ProtocolMagic(1)); err != nil {
		t.Fatalf("WriteMessage: unexpected error: %v", err)
	}

	_, _, err := ReadMessage(&buf, ProtocolMagic(2))
	if err == nil {
		t.Fatal("ReadMessage: expected bad magic error, got nil")
	}
	var merr *MessageError
	if !asMessageError(err, &merr) || merr.Kind != ErrBadMagic {
		t.Fatalf("ReadMessage: expected ErrBadMagic, got %v", err)
	}
}

// TestFrameBadChecksum ensures a frame whose payload was tampered with
// after checksumming is rejected.
func TestFrameBadChecksum(t *testing.T) {
	const magic = ProtocolMagic(7)
	var buf bytes.Buffer
	if err := WriteMessage(&buf, &MsgAddrMe{Port: 1}, magic); err != nil {
		t.Fatalf("WriteMessage: unexpected error: %v", err)
	}

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xff // corrupt the last payload byte

	_, _, err := ReadMessage(bytes.NewReader(raw), magic)
	if err == nil {
		t.Fatal("ReadMessage: expected bad checksum error, got nil")
	}
	var merr *MessageError
	if !asMessageError(err, &merr) || merr.Kind != ErrBadChecksum {
		t.Fatalf("ReadMessage: expected ErrBadChecksum, got %v", err)
	}
}

// TestUnknownCommandNonFatal ensures an unrecognised command results in a
// discarded payload and a nil error rather than tearing down the stream,
// and that the following frame is still readable.
func TestUnknownCommandNonFatal(t *testing.T) {
	const magic = ProtocolMagic(99)
	var buf bytes.Buffer

	// Hand-craft a frame with an unknown command.
	if err := writeHeader(&buf, magic, "bogus", 3, doubleSHA256Checksum([]byte{1, 2, 3})); err != nil {
		t.Fatalf("writeHeader: unexpected error: %v", err)
	}
	buf.Write([]byte{1, 2, 3})

	if err := WriteMessage(&buf, &MsgPong{}, magic); err != nil {
		t.Fatalf("WriteMessage: unexpected error: %v", err)
	}

	msg, command, err := ReadMessage(&buf, magic)
	if err != nil {
		t.Fatalf("ReadMessage: unexpected error for unknown command: %v", err)
	}
	if msg != nil {
		t.Fatalf("ReadMessage: expected nil message for unknown command, got %v", msg)
	}
	if command != "bogus" {
		t.Fatalf("ReadMessage: got command %q, want %q", command, "bogus")
	}

	msg, command, err = ReadMessage(&buf, magic)
	if err != nil {
		t.Fatalf("ReadMessage: unexpected error on following frame: %v", err)
	}
	if command != CmdPong {
		t.Fatalf("ReadMessage: got command %q, want %q", command, CmdPong)
	}
}

func asMessageError(err error, target **MessageError) bool {
	me, ok := err.(*MessageError)
	if !ok {
		return false
	}
	*target = me
	return true
}

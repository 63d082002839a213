// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MaxShareContentsSize bounds a single wrapped share's opaque contents.
const MaxShareContentsSize = 1024 * 1024 // 1 MiB

// MaxSharesPerMsg bounds how many shares a single shares/sharereply message
// may carry.
const MaxSharesPerMsg = 2500

// ShareWrapper is a share exactly as it travels on the wire: a format
// version tag plus the opaque, version-specific encoding of the share
// itself. Turning Contents into a typed share is the external share
// constructor collaborator's job.
type ShareWrapper struct {
	Version  uint32
	Contents []byte
}

func writeShareWrapper(w io.Writer, s *ShareWrapper) error {
	if err := writeElement(w, s.Version); err != nil {
		return err
	}
	return WriteVarBytes(w, s.Contents)
}

func readShareWrapper(r io.Reader) (*ShareWrapper, error) {
	s := &ShareWrapper{}
	if err := readElement(r, &s.Version); err != nil {
		return nil, err
	}
	contents, err := ReadVarBytes(r, MaxShareContentsSize, "share contents")
	if err != nil {
		return nil, err
	}
	s.Contents = contents
	return s, nil
}

func writeShareWrappers(w io.Writer, shares []ShareWrapper) error {
	if err := WriteVarInt(w, uint64(len(shares))); err != nil {
		return err
	}
	for i := range shares {
		if err := writeShareWrapper(w, &shares[i]); err != nil {
			return err
		}
	}
	return nil
}

func readShareWrappers(r io.Reader) ([]ShareWrapper, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > MaxSharesPerMsg {
		return nil, messageError("readShareWrappers", ErrPayloadTooLarge,
			"too many shares for message")
	}
	if count == 0 {
		return nil, nil
	}
	shares := make([]ShareWrapper, count)
	for i := range shares {
		s, err := readShareWrapper(r)
		if err != nil {
			return nil, err
		}
		shares[i] = *s
	}
	return shares, nil
}

// MsgShares carries a batch of wrapped shares, sent both unsolicited (a
// newly found share being broadcast) and in reply to a sharereq.
type MsgShares struct {
	Shares []ShareWrapper
}

// Command implements the Message interface.
func (m *MsgShares) Command() string { return CmdShares }

// MaxPayloadLength implements the Message interface.
func (m *MsgShares) MaxPayloadLength() uint32 { return MaxMessagePayload }

// BtcEncode implements the Message interface.
func (m *MsgShares) BtcEncode(w io.Writer) error { return writeShareWrappers(w, m.Shares) }

// BtcDecode implements the Message interface.
func (m *MsgShares) BtcDecode(r io.Reader) error {
	shares, err := readShareWrappers(r)
	if err != nil {
		return err
	}
	m.Shares = shares
	return nil
}

// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderLength is the number of bytes in a frame header: 8 bytes of magic,
// CommandSize bytes of zero-padded ASCII command, 4 bytes of little-endian
// payload length, and 4 bytes of checksum.
const HeaderLength = 8 + CommandSize + 4 + 4

// messageHeader is the decoded form of a frame's fixed-size header.
type messageHeader struct {
	magic    ProtocolMagic
	command  string
	length   uint32
	checksum [4]byte
}

func doubleSHA256Checksum(payload []byte) [4]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	var out [4]byte
	copy(out[:], second[:4])
	return out
}

func encodeCommand(command string) ([CommandSize]byte, error) {
	var buf [CommandSize]byte
	if len(command) > CommandSize {
		return buf, messageError("encodeCommand", ErrUnknownCommand,
			fmt.Sprintf("command [%s] is longer than the max allowed length [%d]",
				command, CommandSize))
	}
	copy(buf[:], command)
	return buf, nil
}

func decodeCommand(raw [CommandSize]byte) string {
	// Strip trailing NUL padding.
	i := bytes.IndexByte(raw[:], 0)
	if i == -1 {
		return string(raw[:])
	}
	return string(raw[:i])
}

func writeHeader(w io.Writer, magic ProtocolMagic, command string, length uint32, checksum [4]byte) error {
	cmdBuf, err := encodeCommand(command)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(magic)); err != nil {
		return err
	}
	if _, err := w.Write(cmdBuf[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, length); err != nil {
		return err
	}
	_, err = w.Write(checksum[:])
	return err
}

func readHeader(r io.Reader) (*messageHeader, error) {
	var rawMagic uint64
	if err := binary.Read(r, binary.LittleEndian, &rawMagic); err != nil {
		return nil, err
	}

	var rawCommand [CommandSize]byte
	if _, err := io.ReadFull(r, rawCommand[:]); err != nil {
		return nil, err
	}

	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}

	var checksum [4]byte
	if _, err := io.ReadFull(r, checksum[:]); err != nil {
		return nil, err
	}

	return &messageHeader{
		magic:    ProtocolMagic(rawMagic),
		command:  decodeCommand(rawCommand),
		length:   length,
		checksum: checksum,
	}, nil
}

// WriteMessage frames msg and writes it to w: magic, command, payload
// length, double-SHA256 payload checksum, then the encoded payload itself.
func WriteMessage(w io.Writer, msg Message, magic ProtocolMagic) error {
	var payload bytes.Buffer
	if err := msg.BtcEncode(&payload); err != nil {
		return err
	}
	if uint32(payload.Len()) > msg.MaxPayloadLength() {
		return messageError("WriteMessage", ErrPayloadTooLarge,
			fmt.Sprintf("message payload is too large - encoded %d bytes, "+
				"but maximum message payload is %d bytes",
				payload.Len(), msg.MaxPayloadLength()))
	}

	checksum := doubleSHA256Checksum(payload.Bytes())
	if err := writeHeader(w, magic, msg.Command(), uint32(payload.Len()), checksum); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// ReadMessage reads one frame from r and decodes its payload.
//
// On success msg is non-nil and command echoes msg.Command(). If the frame
// names a command this codec does not recognise, msg is nil, command holds
// the unrecognised command string, and err is nil: the payload has already
// been fully consumed from r (discarded) so the stream stays in sync for
// the next frame, matching the "non-fatal, discard and continue" contract
// for unknown commands.
//
// Bad magic and bad checksum are reported as errors wrapping ErrBadMagic /
// ErrBadChecksum; callers must treat those as fatal to the connection.
func ReadMessage(r io.Reader, magic ProtocolMagic) (msg Message, command string, err error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, "", err
	}

	if hdr.magic != magic {
		return nil, "", messageError("ReadMessage", ErrBadMagic,
			fmt.Sprintf("unexpected magic [%x, want %x]", hdr.magic, magic))
	}

	if hdr.length > MaxMessagePayload {
		return nil, hdr.command, messageError("ReadMessage", ErrPayloadTooLarge,
			fmt.Sprintf("message payload is too large - declared %d bytes, "+
				"but maximum message payload is %d bytes",
				hdr.length, MaxMessagePayload))
	}

	payload := make([]byte, hdr.length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, hdr.command, err
	}

	checksum := doubleSHA256Checksum(payload)
	if checksum != hdr.checksum {
		return nil, hdr.command, messageError("ReadMessage", ErrBadChecksum,
			fmt.Sprintf("payload checksum failed - header indicates %x, but actual checksum is %x",
				hdr.checksum, checksum))
	}

	msg, err = MakeEmptyMessage(hdr.command)
	if err != nil {
		// Unknown command: the payload has already been fully read off
		// the wire above, so the stream is still in sync. Report this as
		// a non-error so the caller's read loop simply continues.
		log.Debugf("discarding %d byte payload for unknown command [%s]",
			len(payload), hdr.command)
		return nil, hdr.command, nil
	}

	if err := msg.BtcDecode(bytes.NewReader(payload)); err != nil {
		return nil, hdr.command, messageError("ReadMessage", ErrMessageDecode,
			fmt.Sprintf("failed to decode %s payload: %v", hdr.command, err))
	}

	return msg, hdr.command, nil
}

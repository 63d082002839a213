// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
	"net"
)

// NetAddress represents a peer address as carried in version, addrs, and
// related messages: a 16-byte IPv4-mapped or native IPv6 address and a
// port, without the services bitfield and timestamp a full node's address
// manager needs but a share-chain peer list does not.
type NetAddress struct {
	IP   net.IP
	Port uint16
}

// MaxAddrsPerMsg bounds how many addresses a single addrs message may
// carry; the coordinator also caps every getaddrs reply at this bound,
// whatever the requesting peer's capability.
const MaxAddrsPerMsg = 1000

func writeNetAddress(w io.Writer, na *NetAddress) error {
	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	if err := writeElement(w, ip); err != nil {
		return err
	}
	return writeElement(w, na.Port)
}

func readNetAddress(r io.Reader) (*NetAddress, error) {
	var ip [16]byte
	if err := readElement(r, &ip); err != nil {
		return nil, err
	}
	var port uint16
	if err := readElement(r, &port); err != nil {
		return nil, err
	}
	return &NetAddress{IP: net.IP(ip[:]), Port: port}, nil
}

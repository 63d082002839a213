// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"net"
	"time"

	"github.com/decred/go-socks/socks"
)

// Reconnect backoff bounds. Dialing a seed address once is not enough: a
// node that only ever dials once can never recover an outbound slot lost
// to a transient network blip.
const (
	minReconnectBackoff = 5 * time.Second
	maxReconnectBackoff = 5 * time.Minute
)

// dialer abstracts the plain and SOCKS-proxied dial paths behind one
// signature so the rest of the coordinator doesn't care which is active.
type dialer func(ctx context.Context, network, addr string) (net.Conn, error)

func plainDialer() dialer {
	var d net.Dialer
	return d.DialContext
}

// socksDialer routes outbound connections through a SOCKS5 proxy, for
// operators who run this node over Tor or another anonymising proxy.
func socksDialer(proxyAddr string) dialer {
	proxy := &socks.Proxy{Addr: proxyAddr}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return proxy.Dial(network, addr)
	}
}

// nextBackoff doubles d, capped at maxReconnectBackoff, starting from
// minReconnectBackoff.
func nextBackoff(d time.Duration) time.Duration {
	if d < minReconnectBackoff {
		return minReconnectBackoff
	}
	d *= 2
	if d > maxReconnectBackoff {
		return maxReconnectBackoff
	}
	return d
}

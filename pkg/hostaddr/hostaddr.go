// Package hostaddr discovers network-reachable addresses for the local
// host and assembles TCP listen multiaddrs from them.
package hostaddr

import (
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
	mn "github.com/multiformats/go-multiaddr/net"

	"github.com/omgolab/go-netprobe/pkg/port"
)

// GetLocalIP returns the first non-loopback interface address as a
// multiaddr. The second return is false when interface enumeration fails
// or every reported address is loopback; callers apply their own
// fallback (commonly the loopback address). Which interface wins when
// several qualify is whatever order the OS reports them in.
func GetLocalIP() (ma.Multiaddr, bool) {
	addrs, err := mn.InterfaceMultiaddrs()
	if err != nil {
		return nil, false
	}
	return FirstNonLoopback(addrs)
}

// FirstNonLoopback returns the first address in addrs outside the
// loopback range, or false if there is none.
func FirstNonLoopback(addrs []ma.Multiaddr) (ma.Multiaddr, bool) {
	for _, a := range addrs {
		if !mn.IsIPLoopback(a) {
			return a, true
		}
	}
	return nil, false
}

// GetAvailablePortInMultiaddr reserves a port via pkg/port and wraps it
// in a TCP listen multiaddr: the IPv4 wildcard address when isIPv4 is
// set, the IPv6 loopback otherwise. The IP components are fixed
// literals, so construction cannot fail; if it does, the address
// encoding itself is broken and we panic rather than limp on.
func GetAvailablePortInMultiaddr(isIPv4 bool) ma.Multiaddr {
	ipComp := "/ip6/::1"
	if isIPv4 {
		ipComp = "/ip4/0.0.0.0"
	}
	m, err := ma.NewMultiaddr(fmt.Sprintf("%s/tcp/%d", ipComp, port.GetAvailablePort()))
	if err != nil {
		panic(fmt.Sprintf("building multiaddr from fixed components: %v", err))
	}
	return m
}

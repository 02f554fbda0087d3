// Package port reserves non-ephemeral TCP ports on the local host.
//
// Ports are drawn at random from a fixed range below the ephemeral range
// and driven through a full TCP open/close so the kernel parks them in
// TIME_WAIT, keeping them away from other processes for a grace period
// (roughly 60s on Linux). Callers bind their real listener within that
// window; Go's TCP listeners request address reuse on Unix, so a plain
// net.Listen on the returned port succeeds.
package port

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strconv"
)

const (
	// MinPort and MaxPort bound the half-open range [MinPort, MaxPort)
	// ports are drawn from. The range sits above the well-known ports
	// and below the ephemeral range kernels assign on bind-to-zero, so
	// a reserved port never collides with an OS-chosen one.
	MinPort = 10000
	MaxPort = 30000

	maxRetries = 1000
)

// ErrPortExhausted reports that no free port was found within the retry
// budget. Seen only under massive local port exhaustion.
var ErrPortExhausted = errors.New("no available port")

// GetAvailablePort returns a free, non-ephemeral TCP port, reserved
// best-effort via TIME_WAIT for the caller to rebind. It panics when the
// retry budget runs out; no caller can proceed without a port.
func GetAvailablePort() uint16 {
	p, err := TryGetAvailablePort()
	if err != nil {
		panic(err)
	}
	return p
}

// TryGetAvailablePort is GetAvailablePort with exhaustion surfaced as an
// error wrapping ErrPortExhausted, for embedders that want to retry at a
// higher level instead of dying.
func TryGetAvailablePort() (uint16, error) {
	return acquire(maxRetries)
}

func acquire(retries int) (uint16, error) {
	for range retries {
		p, err := getRandomPort()
		if err != nil {
			// Port in use or bind refused; draw again.
			continue
		}
		return p, nil
	}
	return 0, fmt.Errorf("%w in [%d, %d) after %d attempts", ErrPortExhausted, MinPort, MaxPort, retries)
}

// getRandomPort binds one randomly drawn port and forces it into
// TIME_WAIT by opening and dropping a loopback connection through it.
func getRandomPort() (uint16, error) {
	p, err := randomPort()
	if err != nil {
		return 0, err
	}

	// Bind the pre-chosen port. Binding port 0 instead would have the
	// OS pick an ephemeral port, which this range deliberately avoids.
	l, err := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(int(p))))
	if err != nil {
		return 0, err
	}
	defer l.Close()

	// Read back the concrete bound address before dialing it.
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("listener address %v is not a TCP address", l.Addr())
	}

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	// Accept and drop both ends; the accepted side closes first so the
	// teardown lands the port in TIME_WAIT and the kernel will not hand
	// it to an unrelated process before the caller rebinds.
	accepted, err := l.Accept()
	if err != nil {
		return 0, err
	}
	defer accepted.Close()

	return uint16(addr.Port), nil
}

// randomPort draws uniformly from [MinPort, MaxPort). The draw is
// crypto-random so concurrent test processes do not walk the same
// sequence.
func randomPort() (uint16, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(MaxPort-MinPort))
	if err != nil {
		return 0, err
	}
	return uint16(MinPort + n.Int64()), nil
}

// Package netprobe — probe_test.go exercises port availability checks and
// reachability waits against real OS sockets on the loopback interface.
package netprobe

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenTCP binds an ephemeral TCP port and returns the listener and the
// chosen port number. The caller owns closing the listener.
func listenTCP(t *testing.T) (net.Listener, int) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	_, portStr, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return listener, port
}

// TestIsPortAvailable verifies that a bound port reports unavailable and
// becomes available again after the listener closes.
func TestIsPortAvailable(t *testing.T) {
	prober := NewProber()

	listener, port := listenTCP(t)

	// While the listener holds the port, the bind probe must fail.
	// Note: the listener binds 127.0.0.1 and the probe binds all
	// interfaces, which collides on the same port.
	assert.False(t, prober.IsPortAvailable(port, "tcp"))

	require.NoError(t, listener.Close())
	assert.True(t, prober.IsPortAvailable(port, "tcp"))
}

// TestIsPortAvailableUnknownProtocol verifies the fail-safe behavior for
// protocols the prober does not understand.
func TestIsPortAvailableUnknownProtocol(t *testing.T) {
	prober := NewProber()
	assert.False(t, prober.IsPortAvailable(8501, "sctp"))
	assert.False(t, prober.IsPortAvailable(8501, ""))
}

// TestIsPortAvailableUDP verifies the UDP bind probe.
func TestIsPortAvailableUDP(t *testing.T) {
	prober := NewProber()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, portStr, err := net.SplitHostPort(conn.LocalAddr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	assert.False(t, prober.IsPortAvailable(port, "udp"))
}

// TestWaitReachableImmediate verifies the fast path: a port that is
// already accepting connections returns without polling.
func TestWaitReachableImmediate(t *testing.T) {
	prober := NewProber()

	listener, port := listenTCP(t)
	defer func() { _ = listener.Close() }()

	err := prober.WaitReachable(context.Background(), "127.0.0.1", port, 5*time.Second)
	assert.NoError(t, err)
}

// TestWaitReachableTimeout verifies that an unreachable port fails after
// the timeout with a descriptive error.
func TestWaitReachableTimeout(t *testing.T) {
	prober := NewProber()

	// Bind a port, then close it so nothing is listening there.
	listener, port := listenTCP(t)
	require.NoError(t, listener.Close())

	start := time.Now()
	err := prober.WaitReachable(context.Background(), "127.0.0.1", port, 100*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
	// The wait must respect the timeout rather than spinning forever.
	assert.Less(t, time.Since(start), 5*time.Second)
}

// TestWaitReachableCancelled verifies context cancellation interrupts
// the poll loop.
func TestWaitReachableCancelled(t *testing.T) {
	prober := NewProber()

	listener, port := listenTCP(t)
	require.NoError(t, listener.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := prober.WaitReachable(ctx, "127.0.0.1", port, 30*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

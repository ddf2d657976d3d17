// Package netprobe implements host port probing for the stagehand CLI.
//
// Two operations are provided:
//   - availability checks (is a host port free before a deploy binds it),
//     used by `stagehand validate` to warn about conflicts early
//   - reachability waits (does the deployed container accept connections
//     on its published port), used as the deploy step's smoke check
//
// Both ask the operating system's network stack directly via the net
// package rather than parsing /proc/net/* or shelling out to lsof/ss,
// which may require elevated permissions.
package netprobe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// dialTimeout bounds a single reachability dial attempt. Connections to a
// local published port either succeed or are refused almost immediately;
// one second covers slow container runtimes without stalling the poll loop.
const dialTimeout = 1 * time.Second

// pollInterval is the delay between reachability dial attempts.
const pollInterval = 500 * time.Millisecond

// Prober checks host port availability and reachability.
//
// The struct is currently stateless, but is defined as a struct (rather
// than bare functions) so that future options (e.g. bind address) can be
// added without breaking the API, and so it can be injected as a
// dependency in tests.
type Prober struct{}

// NewProber creates a new Prober instance.
func NewProber() *Prober {
	return &Prober{}
}

// IsPortAvailable checks whether a single port is free on the host machine.
//
// For TCP, it attempts net.Listen(":port"); for UDP, net.ListenPacket.
// If the bind succeeds, the port is available — the listener is closed
// immediately. We bind to all interfaces (":port") because the engine
// publishes ports on 0.0.0.0 by default, so the same address space must
// be checked to avoid false positives.
//
// Returns true if the port is free, false if in use or the protocol is
// unknown (fail safe).
func (p *Prober) IsPortAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = listener.Close() }()
		return true

	case "udp":
		// UDP is connectionless, so ListenPacket (returning a PacketConn)
		// is the bind probe instead of Listen.
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = conn.Close() }()
		return true

	default:
		return false
	}
}

// WaitReachable polls a TCP address until a connection succeeds or the
// timeout elapses. It is the operational smoke check run after a deploy:
// the pipeline only reports success once the container actually accepts
// connections on its published port.
//
// host may be empty, in which case localhost is probed — the common case
// for ports published on 0.0.0.0.
//
// The context allows cancellation (e.g. Ctrl-C during a run); the timeout
// bounds the total wait. Returns nil as soon as one dial succeeds.
func (p *Prober) WaitReachable(ctx context.Context, host string, port int, timeout time.Duration) error {
	if host == "" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	deadline := time.Now().Add(timeout)
	var lastErr error

	for {
		// Dial first, then decide whether to keep waiting. This ordering
		// gives a fast path when the container is already listening.
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			return fmt.Errorf("%s not reachable within %s: %w", addr, timeout, lastErr)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s cancelled: %w", addr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

package worker

import (
	"context"
	"net"
	"time"

	"git.tatikoma.dev/corpix/keeper/errors"
)

const DefaultProbeInterval = 100 * time.Millisecond

// Probe dials addr until it accepts a connection or timeout elapses.
func Probe(ctx context.Context, addr string, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		dialer  net.Dialer
		lastErr error
		ticker  = time.NewTicker(interval)
	)
	defer ticker.Stop()

	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.Close()
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return errors.Wrapf(lastErr, "worker did not accept connections on %s within %s", addr, timeout)
		case <-ticker.C:
		}
	}
}

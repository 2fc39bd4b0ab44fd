// Package netprobe checks whether a TCP port accepts connections.
package netprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DialTimeout bounds a single probe.
const DialTimeout = 100 * time.Millisecond

// Errors returned when a wait runs out of retries.
var (
	ErrNotOpen   = errors.New("port is not open")
	ErrStillOpen = errors.New("port is still open")
)

// Address joins host and port.
func Address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// IsOpen reports whether host:port accepts a TCP connection.
func IsOpen(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", Address(host, port), DialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitOpen polls until host:port accepts connections, trying at most
// retries+1 times with delay in between.
func WaitOpen(ctx context.Context, host string, port, retries int, delay time.Duration) error {
	err := poll(ctx, retries, delay, func() error {
		if IsOpen(host, port) {
			return nil
		}
		return ErrNotOpen
	})
	if err != nil {
		return fmt.Errorf("%s: %w", Address(host, port), err)
	}
	return nil
}

// WaitClosed polls until host:port refuses connections.
func WaitClosed(ctx context.Context, host string, port, retries int, delay time.Duration) error {
	err := poll(ctx, retries, delay, func() error {
		if IsOpen(host, port) {
			return ErrStillOpen
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", Address(host, port), err)
	}
	return nil
}

func poll(ctx context.Context, retries int, delay time.Duration, op backoff.Operation) error {
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(retries)),
		ctx,
	)
	return backoff.Retry(op, b)
}

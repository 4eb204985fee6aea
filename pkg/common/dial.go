package common

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultDialTimeout = 3 * time.Second
)

// DialWithRetry dials addr over TCP with exponential backoff until it succeeds,
// ctx is done or maxElapsed has passed.
func DialWithRetry(ctx context.Context, addr string, maxElapsed time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: DefaultDialTimeout}
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 20 * time.Millisecond
	expBackoff.MaxInterval = time.Second
	return backoff.Retry(ctx, func() (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return conn, nil
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxElapsedTime(maxElapsed))
}

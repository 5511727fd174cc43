package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// PortScan probes TCP ports in [fromPort, toPort] on the given host and
// returns the open ones in ascending order. perPortTimeout bounds each
// connection attempt; the context can cut the whole scan short.
func PortScan(ctx context.Context, host string, fromPort, toPort int, perPortTimeout time.Duration) ([]int, error) {
	if fromPort < 1 || toPort > 65535 || toPort < fromPort {
		return nil, fmt.Errorf("invalid port range [%d, %d]", fromPort, toPort)
	}

	dialer := &net.Dialer{Timeout: perPortTimeout}
	open := make([]int, 0)

	for port := fromPort; port <= toPort; port++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			continue
		}
		conn.Close()
		open = append(open, port)
	}

	return open, nil
}

// Package probe holds the operation-specific probe functions executed
// by workers. Each probe is a pure call taking validated arguments and
// returning a serializable result or a typed error.
package probe

import (
	"context"
	"fmt"
	"net"
	"sort"
)

// Operation names as registered with the handler registry
const (
	OpDNSQuery       = "net.dns_query"
	OpPortScan       = "net.port_scan"
	OpHTTPRequest    = "net.http_request"
	OpProcessTree    = "sys.process_tree"
	OpRegistryAction = "sys.registry_action"
)

// DNSResult is the outcome of a DNS resolution probe
type DNSResult struct {
	Domain  string   `json:"domain"`
	IPs     []string `json:"ips"`
	IPCount int      `json:"ip_count"`
}

// DNSQuery resolves a domain to its unique A/AAAA addresses
func DNSQuery(ctx context.Context, domain string) (*DNSResult, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve domain '%s': %w", domain, err)
	}

	seen := make(map[string]struct{}, len(addrs))
	ips := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		ip := addr.IP.String()
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	return &DNSResult{
		Domain:  domain,
		IPs:     ips,
		IPCount: len(ips),
	}, nil
}

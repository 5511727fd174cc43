package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ohadgu/api-agent/internal/task"
)

// RegisterAll wires every probe into the handler registry under its
// operation name.
func RegisterAll(reg *task.Registry) error {
	handlers := map[string]task.Handler{
		OpDNSQuery:       handleDNSQuery,
		OpPortScan:       handlePortScan,
		OpHTTPRequest:    handleHTTPRequest,
		OpProcessTree:    handleProcessTree,
		OpRegistryAction: handleRegistryAction,
	}
	for name, h := range handlers {
		if err := reg.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

// DNS queries are enqueued with the domain as the single positional
// argument.
func handleDNSQuery(ctx context.Context, args, kwargs json.RawMessage) (interface{}, error) {
	var positional []string
	if len(args) > 0 {
		if err := json.Unmarshal(args, &positional); err != nil {
			return nil, fmt.Errorf("invalid dns_query args: %w", err)
		}
	}
	if len(positional) != 1 {
		return nil, fmt.Errorf("dns_query expects exactly one domain argument, got %d", len(positional))
	}
	return DNSQuery(ctx, positional[0])
}

func handlePortScan(ctx context.Context, args, kwargs json.RawMessage) (interface{}, error) {
	var p struct {
		Domain   string  `json:"domain"`
		FromPort int     `json:"from_port"`
		ToPort   int     `json:"to_port"`
		TimeoutS float64 `json:"timeout_s"`
	}
	if err := json.Unmarshal(kwargs, &p); err != nil {
		return nil, fmt.Errorf("invalid port_scan kwargs: %w", err)
	}
	timeout := time.Duration(p.TimeoutS * float64(time.Second))
	return PortScan(ctx, p.Domain, p.FromPort, p.ToPort, timeout)
}

func handleHTTPRequest(ctx context.Context, args, kwargs json.RawMessage) (interface{}, error) {
	var p HTTPParams
	if err := json.Unmarshal(kwargs, &p); err != nil {
		return nil, fmt.Errorf("invalid http_request kwargs: %w", err)
	}
	return HTTPRequest(ctx, p)
}

func handleProcessTree(ctx context.Context, args, kwargs json.RawMessage) (interface{}, error) {
	var p struct {
		PID int32 `json:"pid"`
	}
	if err := json.Unmarshal(kwargs, &p); err != nil {
		return nil, fmt.Errorf("invalid process_tree kwargs: %w", err)
	}
	tree, err := ProcessTree(ctx, p.PID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"order":        "root --> child",
		"process_tree": tree,
	}, nil
}

func handleRegistryAction(ctx context.Context, args, kwargs json.RawMessage) (interface{}, error) {
	var p struct {
		Action string `json:"action"`
		Key    string `json:"key"`
		Name   string `json:"name"`
		Value  string `json:"value"`
	}
	if err := json.Unmarshal(kwargs, &p); err != nil {
		return nil, fmt.Errorf("invalid registry_action kwargs: %w", err)
	}
	return RegistryAction(p.Action, p.Key, p.Name, p.Value)
}

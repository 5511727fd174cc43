package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ohadgu/api-agent/internal/registry"
)

// Request validation lives at the API boundary: rejections never reach
// the dispatcher, the tracker or the probes.

func validateDomain(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("domain cannot be empty")
	}
	if len(v) > 255 {
		return "", fmt.Errorf("domain cannot exceed 255 characters")
	}
	if strings.ContainsAny(v, " \t\n") {
		return "", fmt.Errorf("domain cannot contain whitespace")
	}
	if strings.HasPrefix(v, ".") || strings.HasSuffix(v, ".") {
		return "", fmt.Errorf("domain cannot start or end with a dot")
	}
	return strings.ToLower(v), nil
}

// DNSQueryRequest asks for a domain's A/AAAA records
type DNSQueryRequest struct {
	Domain string `json:"domain"`
}

func (r *DNSQueryRequest) Validate() error {
	domain, err := validateDomain(r.Domain)
	if err != nil {
		return err
	}
	r.Domain = domain
	return nil
}

// PortScanRequest asks for a TCP scan over [from_port, to_port]
type PortScanRequest struct {
	Domain   string  `json:"domain"`
	FromPort int     `json:"from_port"`
	ToPort   int     `json:"to_port"`
	TimeoutS float64 `json:"timeout_s"`
}

func (r *PortScanRequest) Validate() error {
	domain, err := validateDomain(r.Domain)
	if err != nil {
		return err
	}
	r.Domain = domain

	if r.FromPort < 1 || r.FromPort > 65535 {
		return fmt.Errorf("from_port must be between 1 and 65535, got %d", r.FromPort)
	}
	if r.ToPort < 1 || r.ToPort > 65535 {
		return fmt.Errorf("to_port must be between 1 and 65535, got %d", r.ToPort)
	}
	if r.ToPort < r.FromPort {
		return fmt.Errorf("to_port must be >= from_port")
	}

	if r.TimeoutS == 0 {
		r.TimeoutS = 0.15
	}
	if r.TimeoutS <= 0 || r.TimeoutS > 5.0 {
		return fmt.Errorf("timeout_s must be in (0, 5.0], got %g", r.TimeoutS)
	}
	return nil
}

// HTTPRelayRequest asks for an outbound HTTP request probe
type HTTPRelayRequest struct {
	Method   string            `json:"method"`
	Domain   string            `json:"domain"`
	Port     int               `json:"port"`
	Path     string            `json:"path"`
	Body     json.RawMessage   `json:"body,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
	TimeoutS float64           `json:"timeout_s"`
}

func (r *HTTPRelayRequest) Validate() error {
	domain, err := validateDomain(r.Domain)
	if err != nil {
		return err
	}
	r.Domain = domain

	if r.Method == "" {
		r.Method = "GET"
	}
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	switch r.Method {
	case "GET", "POST", "PUT", "DELETE":
	default:
		return fmt.Errorf("only GET/POST/PUT/DELETE methods are supported, got: %s", r.Method)
	}

	if r.Port == 0 {
		r.Port = 80
	}
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", r.Port)
	}

	if r.Path == "" {
		r.Path = "/"
	}
	if !strings.HasPrefix(r.Path, "/") {
		r.Path = "/" + r.Path
	}

	if r.TimeoutS == 0 {
		r.TimeoutS = 2.0
	}
	if r.TimeoutS < 0 || r.TimeoutS > 30 {
		return fmt.Errorf("timeout_s must be in (0, 30], got %g", r.TimeoutS)
	}
	return nil
}

// ProcessTreeRequest asks for a process ancestry walk
type ProcessTreeRequest struct {
	PID int32 `json:"pid"`
}

func (r *ProcessTreeRequest) Validate() error {
	if r.PID < 1 {
		return fmt.Errorf("pid must be positive, got %d", r.PID)
	}
	return nil
}

// RegistryActionRequest asks for a Windows registry GET/SET/DELETE
type RegistryActionRequest struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Value  string `json:"value,omitempty"`
}

func (r *RegistryActionRequest) Validate() error {
	r.Action = strings.ToUpper(strings.TrimSpace(r.Action))
	switch r.Action {
	case "GET", "SET", "DELETE":
	default:
		return fmt.Errorf("registry action must be GET, SET or DELETE, got: %s", r.Action)
	}
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("registry key cannot be empty")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("registry value name cannot be empty")
	}
	return nil
}

// TrackedServerRequest asks for a new tracked endpoint
type TrackedServerRequest struct {
	PageURI        string `json:"page_uri"`
	ResponseData   string `json:"response_data"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (r *TrackedServerRequest) Validate() error {
	if strings.TrimSpace(r.PageURI) == "" {
		return fmt.Errorf("page_uri cannot be empty")
	}
	if !strings.HasPrefix(r.PageURI, "/") {
		r.PageURI = "/" + r.PageURI
	}

	if r.TimeoutSeconds == 0 {
		r.TimeoutSeconds = 300
	}
	if r.TimeoutSeconds < registry.MinTTLSeconds || r.TimeoutSeconds > registry.MaxTTLSeconds {
		return fmt.Errorf("timeout_seconds must be between %d and %d, got %d",
			registry.MinTTLSeconds, registry.MaxTTLSeconds, r.TimeoutSeconds)
	}
	return nil
}

package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPParams describes one HTTP relay probe. All fields arrive
// pre-validated from the API boundary.
type HTTPParams struct {
	Method  string            `json:"method"`
	Domain  string            `json:"domain"`
	Port    int               `json:"port"`
	Path    string            `json:"path"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Timeout float64           `json:"timeout_s"`
}

// BuildURL assembles the target URL from pre-validated components.
// Ports 80 and 443 select the scheme; anything else is spelled out.
func BuildURL(domain string, port int, path string) string {
	switch port {
	case 80:
		return fmt.Sprintf("http://%s%s", domain, path)
	case 443:
		return fmt.Sprintf("https://%s%s", domain, path)
	default:
		return fmt.Sprintf("http://%s:%d%s", domain, port, path)
	}
}

// HTTPRequest performs the relay request and returns the response body
// text. Responses with status >= 400 are failures.
func HTTPRequest(ctx context.Context, p HTTPParams) (string, error) {
	target := BuildURL(p.Domain, p.Port, p.Path)

	timeout := time.Duration(p.Timeout * float64(time.Second))
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if (p.Method == http.MethodPost || p.Method == http.MethodPut) && len(p.Body) > 0 {
		body = bytes.NewReader(p.Body)
	}

	req, err := http.NewRequestWithContext(reqCtx, p.Method, target, body)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if len(p.Params) > 0 {
		q := url.Values{}
		for k, v := range p.Params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("request timeout after %v for %s", timeout, target)
		}
		return "", fmt.Errorf("request failed to %s: %w", target, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response from %s: %w", target, err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP error %d from %s", resp.StatusCode, target)
	}

	return string(text), nil
}

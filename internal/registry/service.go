// Package registry implements the ephemeral tracked-endpoint registry:
// short-lived HTTP endpoints that serve a fixed payload and log every
// caller who hits them until their TTL runs out.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohadgu/api-agent/internal/logger"
)

const (
	// TTL bounds in seconds for a tracked endpoint
	MinTTLSeconds = 10
	MaxTTLSeconds = 3600
)

// ErrNotFound covers both unknown and expired ids. The two are
// deliberately indistinguishable so a prober cannot learn whether an
// endpoint ever existed.
var ErrNotFound = errors.New("server not found or expired")

// Access is one logged request against a tracked endpoint
type Access struct {
	Timestamp   time.Time         `json:"timestamp"`
	ClientAddr  string            `json:"client_ip"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	UserAgent   string            `json:"user_agent"`
	QueryParams map[string]string `json:"query_params"`
}

// Info describes a live tracked endpoint
type Info struct {
	ServerID      string `json:"server_id"`
	PageURI       string `json:"page_uri"`
	CreatedAt     string `json:"created_at"`
	ExpiresAt     string `json:"expires_at"`
	TimeRemaining int64  `json:"time_remaining"`
	AccessPath    string `json:"access_path"`
}

// LogReport is the per-endpoint access-log snapshot
type LogReport struct {
	ServerID      string   `json:"server_id"`
	ServerInfo    Info     `json:"server_info"`
	TrackingLogs  []Access `json:"tracking_logs"`
	TotalRequests int      `json:"total_requests"`
	UniqueClients int      `json:"unique_clients"`
	LatestRequest *Access  `json:"latest_request"`
}

// ServerSummary is one endpoint's slice of the aggregate overview
type ServerSummary struct {
	PageURI       string   `json:"page_uri"`
	RequestCount  int      `json:"request_count"`
	UniqueClients int      `json:"unique_clients"`
	LatestRequest *Access  `json:"latest_request"`
	RecentLogs    []Access `json:"recent_logs"`
}

// Overview aggregates all live endpoints
type Overview struct {
	Summary struct {
		ActiveServers int `json:"active_servers"`
		TotalRequests int `json:"total_requests"`
		UniqueClients int `json:"unique_clients"`
	} `json:"summary"`
	Servers map[string]ServerSummary `json:"servers"`
}

type entry struct {
	id         string
	targetPath string
	payload    string
	createdAt  time.Time
	expiresAt  time.Time
	accesses   []Access
}

// Service owns the process-wide collection of tracked endpoints. All
// state lives behind one mutex, so a sweep racing a concurrent
// access-log append leaves each entry either fully alive-and-logged or
// fully removed.
type Service struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	log     *logger.Logger
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the wall clock (tests drive expiry with it)
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an empty registry service
func NewService(opts ...Option) *Service {
	s := &Service{
		entries: make(map[string]*entry),
		now:     time.Now,
		log:     logger.GetDefault().WithComponent("registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a tracked endpoint and returns its descriptor.
// expires_at is fixed here and never extended.
func (s *Service) Create(targetPath, payload string, ttlSeconds int) (*Info, error) {
	if targetPath == "" {
		return nil, fmt.Errorf("page uri cannot be empty")
	}
	if ttlSeconds < MinTTLSeconds || ttlSeconds > MaxTTLSeconds {
		return nil, fmt.Errorf("ttl must be between %d and %d seconds, got %d", MinTTLSeconds, MaxTTLSeconds, ttlSeconds)
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := shortID()
	for _, taken := s.entries[id]; taken; _, taken = s.entries[id] {
		id = shortID()
	}

	e := &entry{
		id:         id,
		targetPath: targetPath,
		payload:    payload,
		createdAt:  now,
		expiresAt:  now.Add(time.Duration(ttlSeconds) * time.Second),
	}
	s.entries[id] = e

	s.log.Info("Tracked endpoint created", logger.Fields{
		"server_id": id,
		"page_uri":  targetPath,
		"ttl_s":     ttlSeconds,
	})

	return s.infoLocked(e, now), nil
}

// Lookup returns the descriptor for a live endpoint. An expired entry is
// evicted immediately together with its log (lazy GC on access).
func (s *Service) Lookup(id string) (*Info, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.resolveLocked(id, now)
	if err != nil {
		return nil, err
	}
	return s.infoLocked(e, now), nil
}

// HandleRequest resolves id, logs the access and serves the payload.
// Every resolved request is logged whether or not the path matches;
// only the response differs. Unresolved ids produce ErrNotFound with
// nothing to log against.
func (s *Service) HandleRequest(id, path, clientAddr, method, userAgent string, queryParams map[string]string) (int, string, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.resolveLocked(id, now)
	if err != nil {
		return 0, "", err
	}

	e.accesses = append(e.accesses, Access{
		Timestamp:   now.UTC(),
		ClientAddr:  clientAddr,
		Method:      method,
		Path:        path,
		UserAgent:   userAgent,
		QueryParams: queryParams,
	})

	s.log.Info("Tracked endpoint accessed", logger.Fields{
		"server_id": id,
		"client":    clientAddr,
		"method":    method,
		"path":      path,
	})

	if path == e.targetPath {
		return 200, e.payload, nil
	}
	return 404, fmt.Sprintf("Page not found. Available: %s", e.targetPath), nil
}

// Logs returns the access-log snapshot for a live endpoint
func (s *Service) Logs(id string) (*LogReport, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.resolveLocked(id, now)
	if err != nil {
		return nil, err
	}

	report := &LogReport{
		ServerID:      e.id,
		ServerInfo:    *s.infoLocked(e, now),
		TrackingLogs:  append([]Access(nil), e.accesses...),
		TotalRequests: len(e.accesses),
		UniqueClients: uniqueClients(e.accesses),
	}
	if n := len(e.accesses); n > 0 {
		latest := e.accesses[n-1]
		report.LatestRequest = &latest
	}
	return report, nil
}

// ListAll snapshots every currently alive endpoint. Expired entries are
// skipped but not evicted; eviction belongs to Lookup and SweepExpired.
func (s *Service) ListAll() Overview {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := Overview{Servers: make(map[string]ServerSummary)}
	seen := make(map[string]struct{})

	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			continue
		}

		summary := ServerSummary{
			PageURI:       e.targetPath,
			RequestCount:  len(e.accesses),
			UniqueClients: uniqueClients(e.accesses),
		}
		if n := len(e.accesses); n > 0 {
			latest := e.accesses[n-1]
			summary.LatestRequest = &latest

			start := n - 5
			if start < 0 {
				start = 0
			}
			summary.RecentLogs = append([]Access(nil), e.accesses[start:]...)
		}
		out.Servers[id] = summary

		out.Summary.TotalRequests += len(e.accesses)
		for _, a := range e.accesses {
			seen[a.ClientAddr] = struct{}{}
		}
	}

	out.Summary.ActiveServers = len(out.Servers)
	out.Summary.UniqueClients = len(seen)
	return out
}

// SweepExpired evicts every expired entry and returns the count. It
// shares resolveLocked's expiry predicate with Lookup so the two paths
// cannot disagree about what "alive" means.
func (s *Service) SweepExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			evicted++
		}
	}

	if evicted > 0 {
		s.log.Info("Swept expired endpoints", logger.Fields{
			"evicted": evicted,
		})
	}
	return evicted
}

// resolveLocked returns the live entry for id, evicting it first when
// expired. Callers must hold s.mu.
func (s *Service) resolveLocked(id string, now time.Time) (*entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if now.After(e.expiresAt) {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *Service) infoLocked(e *entry, now time.Time) *Info {
	remaining := int64(e.expiresAt.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &Info{
		ServerID:      e.id,
		PageURI:       e.targetPath,
		CreatedAt:     e.createdAt.UTC().Format(time.RFC3339),
		ExpiresAt:     e.expiresAt.UTC().Format(time.RFC3339),
		TimeRemaining: remaining,
		AccessPath:    fmt.Sprintf("/server/%s%s", e.id, e.targetPath),
	}
}

func uniqueClients(accesses []Access) int {
	if len(accesses) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(accesses))
	for _, a := range accesses {
		seen[a.ClientAddr] = struct{}{}
	}
	return len(seen)
}

func shortID() string {
	return uuid.New().String()[:8]
}

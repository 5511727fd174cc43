package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ohadgu/api-agent/internal/logger"
	"github.com/ohadgu/api-agent/internal/registry"
)

// handleCreateServer registers a new tracked endpoint and returns its
// descriptor with an empty access log.
func (s *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req TrackedServerRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	info, err := s.registry.Create(req.PageURI, req.ResponseData, req.TimeoutSeconds)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "SUCCESS",
		"server_info":    info,
		"request_logs":   []registry.Access{},
		"total_requests": 0,
		"unique_clients": 0,
	})
}

// routeServer dispatches everything under /server/:
//
//	/server/logs/all       aggregate overview of all live endpoints
//	/server/{id}/logs      access log for one endpoint
//	/server/{id}/{path}    the tracked endpoint itself
func (s *Server) routeServer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/server/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	if rest == "logs/all" {
		s.writeJSON(w, http.StatusOK, s.registry.ListAll())
		return
	}

	id, tail, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if tail == "logs" {
		s.handleServerLogs(w, id)
		return
	}

	s.handleTrackedRequest(w, r, id, "/"+tail)
}

// handleServerLogs returns the access log for one tracked endpoint
func (s *Server) handleServerLogs(w http.ResponseWriter, id string) {
	report, err := s.registry.Logs(id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, map[string]string{
				"error":     "Server not found or expired",
				"server_id": id,
			})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleTrackedRequest serves (and logs) a hit against a tracked
// endpoint. The registry decides between the payload and a miss; the
// handler only translates that into an HTTP response.
func (s *Server) handleTrackedRequest(w http.ResponseWriter, r *http.Request, id, path string) {
	queryParams := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			queryParams[k] = vs[0]
		}
	}

	status, body, err := s.registry.HandleRequest(
		id, path, clientAddr(r), r.Method, r.UserAgent(), queryParams)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "Server not found or expired")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if status == http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(status)
	fmt.Fprint(w, body)

	s.log.Debug("Tracked endpoint served", logger.Fields{
		"server_id": id,
		"path":      path,
		"status":    status,
	})
}

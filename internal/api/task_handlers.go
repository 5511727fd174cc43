package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ohadgu/api-agent/internal/logger"
	"github.com/ohadgu/api-agent/internal/probe"
)

// handleResult returns the lifecycle projection for a task id. Unknown
// ids and store failures both answer UNKNOWN; this endpoint never
// errors out of band.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/api/tasks/result/")
	if strings.TrimSpace(taskID) == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid task_id")
		return
	}

	res := s.tracker.Query(r.Context(), taskID)
	s.writeJSON(w, http.StatusOK, res)
}

// handleDNS enqueues a DNS resolution probe
func (s *Server) handleDNS(w http.ResponseWriter, r *http.Request) {
	var req DNSQueryRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	// The domain travels as the single positional argument
	receipt, err := s.dispatcher.Enqueue(r.Context(), probe.OpDNSQuery, []string{req.Domain}, nil)
	if err != nil {
		s.log.Error("Failed to enqueue DNS query", logger.Fields{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, "Failed to enqueue DNS query")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id": receipt.TaskID,
		"status":  receipt.Status,
		"name":    receipt.Name,
		"domain":  req.Domain,
	})
}

// handlePortScan enqueues a TCP port scan probe
func (s *Server) handlePortScan(w http.ResponseWriter, r *http.Request) {
	var req PortScanRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	receipt, err := s.dispatcher.Enqueue(r.Context(), probe.OpPortScan, nil, req)
	if err != nil {
		s.log.Error("Failed to enqueue port scan", logger.Fields{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, "Failed to enqueue port scan")
		return
	}

	s.writeJSON(w, http.StatusOK, receipt)
}

// handleHTTPRelay enqueues an outbound HTTP request probe
func (s *Server) handleHTTPRelay(w http.ResponseWriter, r *http.Request) {
	var req HTTPRelayRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	receipt, err := s.dispatcher.Enqueue(r.Context(), probe.OpHTTPRequest, nil, req)
	if err != nil {
		s.log.Error("Failed to enqueue HTTP request", logger.Fields{"error": err.Error()})
		s.writeError(w, http.StatusInternalServerError, "Failed to enqueue HTTP request")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id": receipt.TaskID,
		"status":  receipt.Status,
		"name":    receipt.Name,
		"url":     probe.BuildURL(req.Domain, req.Port, req.Path),
	})
}

// handleProcessTree walks the ancestry of a local process. This one
// executes immediately rather than through the queue.
func (s *Server) handleProcessTree(w http.ResponseWriter, r *http.Request) {
	var req ProcessTreeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	tree, err := probe.ProcessTree(r.Context(), req.PID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"order":        "root --> child",
		"process_tree": tree,
	})
}

// handleRegistryAction performs a Windows registry GET/SET/DELETE. On
// other platforms the action reports an error payload instead of
// reaching the probe.
func (s *Server) handleRegistryAction(w http.ResponseWriter, r *http.Request) {
	var req RegistryActionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := probe.RegistryAction(req.Action, req.Key, req.Name, req.Value)
	if err != nil {
		if errors.Is(err, probe.ErrUnsupportedPlatform) {
			s.writeJSON(w, http.StatusOK, map[string]string{
				"error":  err.Error(),
				"status": "ERROR",
			})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// decodeAndValidate parses the POST body into req and runs its
// validation, answering 400 on any failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{ Validate() error }) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

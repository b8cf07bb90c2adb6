package api

import (
	"errors"
	"net/http"

	"github.com/mttchpmn/flux/internal/node"
)

// Upsert response messages. Clients match on these strings.
const (
	msgNodeCreated = "New node added to DB successfully"
	msgNodeUpdated = "Existing node updated successfully"
)

// upsertResponse is the body returned by POST /config/node.
type upsertResponse struct {
	Message string      `json:"message"`
	Node    node.Config `json:"node"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// handleRoot answers liveness probes.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write([]byte("Flux API online.\n"))
}

// handleGetNode returns the stored configuration for the id query
// parameter, or the default configuration when none is stored.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	id := node.Null()
	if v := query.Get("id"); v != "" {
		id = node.String(v)
	}

	cfg, found := s.registry.Lookup(id)
	if !found {
		s.logger.Debug("no stored config, sending default", "id", id.String())
	}

	data, err := encodeBody(cfg, query.Get("stringify") != "")
	if err != nil {
		s.logger.Error("encoding node config failed", "id", id.String(), "error", err)
		writeInternalError(w, "failed to encode node config")
		return
	}
	writeEncoded(w, http.StatusOK, data)
}

// handleUpsertNode creates or updates the node named by the body's id.
func (s *Server) handleUpsertNode(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
			return
		}
		writeBadRequest(w, err.Error())
		return
	}

	stored, created, err := s.registry.Upsert(r.Context(), fields)
	if err != nil {
		if errors.Is(err, node.ErrInvalidNode) {
			writeValidationError(w, err.Error())
			return
		}
		s.logger.Error("node upsert failed",
			"id", fields.Get("id").String(),
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "failed to save node config")
		return
	}

	resp := upsertResponse{Message: msgNodeUpdated, Node: stored}
	if created {
		resp.Message = msgNodeCreated
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth reports whether the document store is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "document store unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: s.version})
}

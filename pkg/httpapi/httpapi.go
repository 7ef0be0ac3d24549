// Package httpapi wires the minimal net/http.ServeMux surface needed to
// exercise the orchestration envelope: no routing framework, no OpenAPI
// generation, just enough handler plumbing to drive a write-path request
// end to end.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
	"github.com/zonetrust/compliance-core/pkg/envelope"
	"github.com/zonetrust/compliance-core/pkg/policyengine"
	"github.com/zonetrust/compliance-core/pkg/ratelimit"
	"github.com/zonetrust/compliance-core/pkg/sovereignty"
	"github.com/zonetrust/compliance-core/pkg/store"
	"github.com/zonetrust/compliance-core/pkg/tensor"
)

// Server exposes the entity-onboarding write path described in the
// orchestration envelope over HTTP.
type Server struct {
	Envelope  *envelope.Envelope
	Entities  store.Entities
	Tensors   func(jurisdictionID string) *tensor.Tensor
	RateLimit *ratelimit.Limiter
	Metrics   *Metrics
}

// NewMux builds the ServeMux for s.
func (s *Server) NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/entities", s.rateLimited(s.handleCreateEntity))
	mux.HandleFunc("/v1/entities/", s.rateLimited(s.handleGetEntity))
	return mux
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if s.RateLimit != nil && !s.RateLimit.Allow(r.RemoteAddr) {
			s.Metrics.observeRateLimitRejection()
			writeJSONError(rec, http.StatusTooManyRequests, "rate limit exceeded")
			s.Metrics.observe(r.URL.Path, r.Method, rec.status)
			return
		}
		next(rec, r)
		s.Metrics.observe(r.URL.Path, r.Method, rec.status)
	}
}

// statusRecorder captures the status code a handler wrote so the
// rate-limiting middleware can report it to metrics after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// CreateEntityRequest is the POST /v1/entities body.
type CreateEntityRequest struct {
	JurisdictionID string         `json:"jurisdiction_id"`
	LegalName      string         `json:"legal_name"`
	EntityType     string         `json:"entity_type"`
	Attributes     map[string]any `json:"attributes"`
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JurisdictionID == "" || req.LegalName == "" {
		err := apierrors.Validation("jurisdiction_id and legal_name are required")
		writeJSONError(w, apierrors.HTTPStatus(err), apierrors.KindOf(err).Code())
		return
	}

	var tens *tensor.Tensor
	if s.Tensors != nil {
		tens = s.Tensors(req.JurisdictionID)
	}

	resp, err := s.Envelope.Execute(r.Context(), envelope.Request{
		JurisdictionID: req.JurisdictionID,
		SovereigntyChecks: []envelope.SovereigntyCheck{
			{Category: sovereignty.PII, Target: req.JurisdictionID},
		},
		Tensor:     tens,
		EventType:     "entity.onboarded",
		ResourceID:    req.LegalName,
		ActorDID:      s.Envelope.ZoneDID,
		PolicyTrigger: policyengine.EntityOnboarded,
		PolicyData: func(result any) map[string]any {
			entity, _ := result.(store.Entity)
			return map[string]any{
				"id":              entity.ID.String(),
				"jurisdiction_id": entity.JurisdictionID,
				"legal_name":      entity.LegalName,
				"entity_type":     entity.EntityType,
			}
		},
		Mutate: func(ctx context.Context) (any, error) {
			return s.Entities.Create(ctx, store.Entity{
				JurisdictionID: req.JurisdictionID,
				LegalName:      req.LegalName,
				EntityType:     req.EntityType,
				Attributes:     req.Attributes,
			})
		},
		CredentialSubject: func(result any) map[string]any {
			entity, _ := result.(store.Entity)
			return map[string]any{
				"id":              entity.ID.String(),
				"jurisdiction_id": entity.JurisdictionID,
				"legal_name":      entity.LegalName,
				"entity_type":     entity.EntityType,
			}
		},
	})
	if err != nil {
		writeJSONError(w, apierrors.HTTPStatus(err), apierrors.KindOf(err).Code())
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idStr := r.URL.Path[len("/v1/entities/"):]
	id, err := uuid.Parse(idStr)
	if err != nil {
		vErr := apierrors.Validation("invalid entity id %q", idStr)
		writeJSONError(w, apierrors.HTTPStatus(vErr), apierrors.KindOf(vErr).Code())
		return
	}

	e, err := s.Entities.Get(r.Context(), id)
	if err != nil {
		writeJSONError(w, apierrors.HTTPStatus(err), apierrors.KindOf(err).Code())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

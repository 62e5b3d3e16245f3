package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/alnah/guidematrix/internal/analysis"
	"github.com/alnah/guidematrix/internal/project"
	"github.com/alnah/guidematrix/internal/schema"
	"github.com/alnah/guidematrix/internal/store"
	"github.com/alnah/guidematrix/internal/validate"
)

type handler struct {
	svc    Runner
	logger *zap.Logger
}

// runRequest is the POST body.
type runRequest struct {
	Kind      string             `json:"kind"`
	Config    *project.Config    `json:"config"`
	Documents []project.Document `json:"documents"`
}

// runResponse is the POST reply.
type runResponse struct {
	RunID   string            `json:"run_id"`
	Status  validate.Status   `json:"status"`
	Repairs []string          `json:"repairs"`
	Defects []validate.Defect `json:"defects"`
	Record  *store.Record     `json:"record,omitempty"`
}

func keyFrom(r *http.Request) store.Key {
	v := mux.Vars(r)
	return store.Key{ProjectID: v["projectID"], UserID: v["userID"]}
}

// runAnalysis handles POST /v1/projects/{projectID}/users/{userID}/analysis.
func (h *handler) runAnalysis(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", fmt.Sprintf("decode request: %v", err))
		return
	}

	kind := schema.ContentAnalysisKind
	if body.Kind != "" {
		k, err := schema.ParseKind(body.Kind)
		if err != nil {
			writeFailure(w, err, nil)
			return
		}
		kind = k
	}

	req := analysis.Request{Key: keyFrom(r), Kind: kind, Documents: body.Documents}
	if body.Config != nil {
		req.Config = *body.Config
	}

	out, err := h.svc.Run(r.Context(), req)
	if err != nil {
		h.logger.Warn("analysis failed", zap.String("key", req.Key.String()), zap.Error(err))
		writeFailure(w, err, out.Result.Defects)
		return
	}

	resp := runResponse{
		RunID:   out.RunID,
		Status:  out.Result.Status,
		Repairs: nonNil(out.Result.Repairs),
		Defects: nonNil(out.Result.Defects),
		Record:  &out.Record,
	}
	writeJSON(w, http.StatusCreated, resp)
}

// getAnalysis handles GET /v1/projects/{projectID}/users/{userID}/analysis.
func (h *handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), keyFrom(r))
	if err != nil {
		writeFailure(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Defects []validate.Defect `json:"defects,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func writeFailure(w http.ResponseWriter, err error, defects []validate.Defect) {
	status, code := classify(err)
	resp := errorResponse{Error: code, Message: err.Error()}
	if errors.Is(err, analysis.ErrQualityRejected) {
		resp.Defects = defects
	}
	writeJSON(w, status, resp)
}

package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/efreitasn/dexfuzz/internal/service"
	"github.com/efreitasn/dexfuzz/internal/sim"
)

// RunHandler serves simulation run submissions.
type RunHandler struct {
	svc *service.RunService
}

// NewRunHandler creates a RunHandler backed by the given service.
func NewRunHandler(svc *service.RunService) *RunHandler {
	return &RunHandler{svc: svc}
}

type runRequest struct {
	Data      string `json:"data"` // base64-encoded byte stream
	Verbosity *int   `json:"verbosity,omitempty"`
}

type violationResponse struct {
	Error     string `json:"error"`
	Invariant string `json:"invariant"`
	Asset     string `json:"asset"`
	Owner     *int   `json:"owner,omitempty"`
	Observed  uint64 `json:"observed"`
	Want      uint64 `json:"want"`
	Message   string `json:"message"`
}

// Submit handles POST /runs. The body carries the raw fuzz input as
// base64; the response is the run report, or the invariant violation
// detail with status 422 when the run fails verification.
func (h *RunHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "data must be base64")
		return
	}
	if req.Verbosity != nil && (*req.Verbosity < 0 || *req.Verbosity > 4) {
		WriteError(w, http.StatusBadRequest, "invalid_request", "verbosity must be in 0..4")
		return
	}

	report, err := h.svc.Execute(data, req.Verbosity)
	if err != nil {
		var violation *sim.InvariantViolation
		if errors.As(err, &violation) {
			resp := violationResponse{
				Error:     "invariant_violation",
				Invariant: violation.Invariant,
				Asset:     string(violation.Asset),
				Observed:  violation.Observed,
				Want:      violation.Want,
				Message:   violation.Error(),
			}
			if violation.PerOwner {
				owner := int(violation.Owner)
				resp.Owner = &owner
			}
			WriteJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		WriteError(w, http.StatusInternalServerError, "run_failed", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

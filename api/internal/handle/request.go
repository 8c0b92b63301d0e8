package handle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type CreateRequestBody struct {
	IncidentType    string  `json:"incident_type"`
	ServiceCategory *string `json:"service_category,omitempty"`
}

func (h *Handle) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var in CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.IncidentType) == "" {
		writeError(w, http.StatusBadRequest, errors.New("incident_type is required"))
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	req, err := h.svc.CreateRequest(ctx, in.IncidentType, in.ServiceCategory)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handle) GetRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	req, err := h.svc.GetRequest(ctx, chi.URLParam(r, "requestId"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

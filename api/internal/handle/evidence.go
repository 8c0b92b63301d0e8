package handle

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"assist-bot/api/internal/evidence"
	"assist-bot/api/internal/service"
	"assist-bot/api/internal/store"
	"assist-bot/api/internal/util"
)

type PhotoRequest struct {
	DocumentType evidence.DocumentType `json:"document_type"`
	FileName     string                `json:"file_name"`
	MIME         string                `json:"mime,omitempty"`
	// base64 или data:URI
	Image string `json:"image"`
}

type PhotoResponse struct {
	Item    *evidence.Item        `json:"item,omitempty"`
	Outcome evidence.PhotoOutcome `json:"outcome"`
	Error   string                `json:"error,omitempty"`
}

func (h *Handle) SubmitPhoto(w http.ResponseWriter, r *http.Request) {
	var in PhotoRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPhotoBody)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, fmt.Sprintf("body exceeds %d bytes", tooBig.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(string(in.DocumentType)) == "" {
		http.Error(w, "document_type is required", http.StatusBadRequest)
		return
	}
	img, hintMIME, err := util.DecodeBase64MaybeDataURL(in.Image)
	if err != nil || len(img) == 0 {
		http.Error(w, "bad image", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	it, out, err := h.svc.SubmitPhoto(ctx, chi.URLParam(r, "requestId"), service.PhotoUpload{
		DocumentType: evidence.DocumentType(strings.ToUpper(strings.TrimSpace(string(in.DocumentType)))),
		FileName:     in.FileName,
		MIME:         util.PickMIME(in.MIME, hintMIME, img),
		Content:      img,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := PhotoResponse{Item: it, Outcome: out}
	var (
		pm  *evidence.PolicyMismatch
		ve  *evidence.ValidationError
		esc *evidence.EscalationRequired
	)
	switch oerr := out.Err(); {
	case errors.As(oerr, &pm):
		resp.Error = pm.Error()
		writeJSON(w, http.StatusConflict, resp)
	case errors.As(oerr, &ve):
		resp.Error = ve.Error()
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.As(oerr, &esc):
		writeJSON(w, http.StatusAccepted, resp)
	default:
		writeJSON(w, http.StatusCreated, resp)
	}
}

type FormRequest struct {
	FormType evidence.FormType `json:"form_type,omitempty"`
	Fields   map[string]string `json:"fields"`
}

type FormResponse struct {
	Form    *evidence.FormSubmission `json:"form"`
	Outcome evidence.FormOutcome     `json:"outcome"`
	Error   string                   `json:"error,omitempty"`
}

func (h *Handle) SubmitForm(w http.ResponseWriter, r *http.Request) {
	var in FormRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	f, out, err := h.svc.SubmitForm(ctx, chi.URLParam(r, "requestId"), evidence.FormSubmission{
		FormType: in.FormType,
		Fields:   in.Fields,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp := FormResponse{Form: f, Outcome: out}
	var (
		fm  *evidence.FormMismatch
		esc *evidence.EscalationRequired
	)
	switch oerr := out.Err(); {
	case errors.As(oerr, &fm):
		resp.Error = fm.Error()
		writeJSON(w, http.StatusConflict, resp)
	case errors.As(oerr, &esc):
		writeJSON(w, http.StatusAccepted, resp)
	default:
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (h *Handle) Completeness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	c, err := h.svc.Completeness(ctx, chi.URLParam(r, "requestId"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type EscalateRequest struct {
	Reason string `json:"reason"`
}

func (h *Handle) Escalate(w http.ResponseWriter, r *http.Request) {
	var in EscalateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	req, err := h.svc.Escalate(ctx, chi.URLParam(r, "requestId"), in.Reason)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handle) DeleteEvidence(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	err := h.svc.DeleteEvidence(ctx, chi.URLParam(r, "itemId"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrApprovedEvidence):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, statusFor(err), err)
	}
}

func (h *Handle) Flow(w http.ResponseWriter, r *http.Request) {
	it := r.URL.Query().Get("incident_type")
	if strings.TrimSpace(it) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("incident_type is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.tables.ResolveFlow(it))
}

type DecisionRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	Note   string `json:"note,omitempty"`
}

// DecideEvidence — решение администратора по документу после эскалации.
func (h *Handle) DecideEvidence(w http.ResponseWriter, r *http.Request) {
	var in DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	status := evidence.ReviewStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	it, err := h.svc.DecideEvidence(ctx, chi.URLParam(r, "itemId"), status, in.Actor, in.Note)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

package handle

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"assist-bot/api/internal/booking"
)

type BookingRequest struct {
	RequestID   string     `json:"request_id"`
	Provider    string     `json:"provider,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

func (h *Handle) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var in BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if in.RequestID == "" {
		writeError(w, http.StatusBadRequest, errors.New("request_id is required"))
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	b, err := h.svc.CreateBooking(ctx, in.RequestID, in.Provider, in.ScheduledAt)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

type StatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	Note   string `json:"note,omitempty"`
}

type StatusResponse struct {
	Booking *booking.Booking     `json:"booking"`
	Entry   booking.HistoryEntry `json:"history_entry"`
}

func (h *Handle) ChangeBookingStatus(w http.ResponseWriter, r *http.Request) {
	var in StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	to, err := booking.ParseStatus(in.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if in.Actor == "" {
		in.Actor = "api"
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	b, entry, err := h.svc.ChangeBookingStatus(ctx, chi.URLParam(r, "bookingId"), to, in.Actor, in.Note)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Booking: b, Entry: entry})
}

func (h *Handle) BookingHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	hist, err := h.svc.BookingHistory(ctx, chi.URLParam(r, "bookingId"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

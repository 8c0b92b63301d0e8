package handle

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (h *Handle) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(recovery)
	r.Use(logger)

	r.Get("/healthz", h.Healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/flow", h.Flow)

		r.Post("/requests", h.CreateRequest)
		r.Get("/requests/{requestId}", h.GetRequest)
		r.Post("/requests/{requestId}/photos", h.SubmitPhoto)
		r.Post("/requests/{requestId}/forms", h.SubmitForm)
		r.Get("/requests/{requestId}/completeness", h.Completeness)
		r.Post("/requests/{requestId}/escalate", h.Escalate)

		r.Delete("/evidence/{itemId}", h.DeleteEvidence)
		r.Post("/evidence/{itemId}/decision", h.DecideEvidence)

		r.Post("/bookings", h.CreateBooking)
		r.Post("/bookings/{bookingId}/status", h.ChangeBookingStatus)
		r.Get("/bookings/{bookingId}/history", h.BookingHistory)
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Printf("panic in %s %s: %v", r.Method, r.URL.Path, v)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

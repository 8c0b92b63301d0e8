// Package booking — жизненный цикл заказа услуги по заявке.
package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var ErrInvalidTransition = errors.New("booking: invalid status transition")

// допустимые переходы; COMPLETED и CANCELLED терминальные
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

type Booking struct {
	ID              string     `json:"id"`
	RequestID       string     `json:"request_id"`
	ServiceCategory string     `json:"service_category"`
	Provider        string     `json:"provider,omitempty"`
	Status          Status     `json:"status"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HistoryEntry — одна запись журнала смены статуса.
type HistoryEntry struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
	At        time.Time `json:"at"`
}

func New(requestID, category string, now time.Time) *Booking {
	return &Booking{
		ID:              uuid.NewString(),
		RequestID:       requestID,
		ServiceCategory: category,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("booking: unknown status %q", s)
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition меняет статус и возвращает запись истории. При недопустимом переходе
// бронь не меняется.
func Transition(b *Booking, to Status, actor, note string, now time.Time) (HistoryEntry, error) {
	if b == nil {
		return HistoryEntry{}, errors.New("booking: nil booking")
	}
	if b.Status.Terminal() {
		return HistoryEntry{}, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, b.Status)
	}
	if !CanTransition(b.Status, to) {
		return HistoryEntry{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	h := HistoryEntry{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		From:      b.Status,
		To:        to,
		Actor:     actor,
		Note:      note,
		At:        now,
	}
	b.Status = to
	b.UpdatedAt = now
	return h, nil
}

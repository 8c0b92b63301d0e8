package store

import (
	"context"
	"database/sql"
	"fmt"

	"assist-bot/api/internal/booking"
)

type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

func (r *BookingRepo) Create(ctx context.Context, b *booking.Booking) error {
	const q = `
insert into bookings (id, request_id, service_category, provider, status, scheduled_at, created_at, updated_at)
values ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.DB.ExecContext(ctx, q, b.ID, b.RequestID, b.ServiceCategory, b.Provider, b.Status,
		nullTime(b.ScheduledAt), b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *BookingRepo) Get(ctx context.Context, id string) (*booking.Booking, error) {
	const q = `
select id, request_id, service_category, provider, status, scheduled_at, created_at, updated_at
from bookings
where id = $1`
	var (
		b     booking.Booking
		sched sql.NullTime
	)
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.RequestID, &b.ServiceCategory, &b.Provider,
		&b.Status, &sched, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ScheduledAt = timePtr(sched)
	return &b, nil
}

// SaveTransition в одной транзакции обновляет статус и пишет запись истории.
// Обновление условно по прежнему статусу: конкурентный переход вернёт booking.ErrInvalidTransition.
func (r *BookingRepo) SaveTransition(ctx context.Context, b *booking.Booking, h booking.HistoryEntry) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update bookings set status=$2, updated_at=$3 where id=$1 and status=$4`,
		b.ID, h.To, h.At, h.From)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return fmt.Errorf("%w: booking %s is no longer %s", booking.ErrInvalidTransition, b.ID, h.From)
	}
	if _, err := tx.ExecContext(ctx, `
insert into booking_history (id, booking_id, from_status, to_status, actor, note, created_at)
values ($1,$2,$3,$4,$5,$6,$7)`,
		h.ID, h.BookingID, h.From, h.To, h.Actor, h.Note, h.At); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *BookingRepo) History(ctx context.Context, bookingID string) ([]booking.HistoryEntry, error) {
	const q = `
select id, booking_id, from_status, to_status, actor, note, created_at
from booking_history
where booking_id = $1
order by created_at`
	rows, err := r.DB.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []booking.HistoryEntry{}
	for rows.Next() {
		var h booking.HistoryEntry
		if err := rows.Scan(&h.ID, &h.BookingID, &h.From, &h.To, &h.Actor, &h.Note, &h.At); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"time"
)

// Виды записей журнала ревью.
const (
	SubjectItem    = "item"
	SubjectForm    = "form"
	SubjectRequest = "request"
)

// ReviewLogEntry — строка журнала; журнал только дополняется.
type ReviewLogEntry struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	SubjectKind string    `json:"subject_kind"`
	SubjectID   string    `json:"subject_id"`
	Status      string    `json:"status"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Score       *int      `json:"score,omitempty"`
	Directive   string    `json:"directive,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ReviewLogRepo struct{ DB *sql.DB }

func NewReviewLogRepo(db *sql.DB) *ReviewLogRepo { return &ReviewLogRepo{DB: db} }

func (r *ReviewLogRepo) Append(ctx context.Context, e ReviewLogEntry) error {
	var (
		conf  sql.NullFloat64
		score sql.NullInt64
	)
	if e.Confidence != nil {
		conf = sql.NullFloat64{Float64: *e.Confidence, Valid: true}
	}
	if e.Score != nil {
		score = sql.NullInt64{Int64: int64(*e.Score), Valid: true}
	}
	const q = `
insert into review_log (request_id, subject_kind, subject_id, status, confidence, score, directive, note)
values ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.DB.ExecContext(ctx, q, e.RequestID, e.SubjectKind, e.SubjectID, e.Status, conf, score, e.Directive, e.Note)
	return err
}

func (r *ReviewLogRepo) ListByRequest(ctx context.Context, requestID string) ([]ReviewLogEntry, error) {
	const q = `
select id, request_id, subject_kind, subject_id, status, confidence, score, directive, note, created_at
from review_log
where request_id = $1
order by created_at, id`
	rows, err := r.DB.QueryContext(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReviewLogEntry
	for rows.Next() {
		var (
			e     ReviewLogEntry
			conf  sql.NullFloat64
			score sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.SubjectKind, &e.SubjectID, &e.Status, &conf, &score, &e.Directive, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		if conf.Valid {
			v := conf.Float64
			e.Confidence = &v
		}
		if score.Valid {
			v := int(score.Int64)
			e.Score = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

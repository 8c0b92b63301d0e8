package store

import (
	"context"
	"database/sql"
	"errors"

	"assist-bot/api/internal/evidence"
)

var ErrApprovedEvidence = errors.New("approved evidence cannot be deleted")

type EvidenceRepo struct{ DB *sql.DB }

func NewEvidenceRepo(db *sql.DB) *EvidenceRepo { return &EvidenceRepo{DB: db} }

func (r *EvidenceRepo) Insert(ctx context.Context, it *evidence.Item) error {
	const q = `
insert into evidence_items (
  id, request_id, document_type, file_name, extension, size_bytes,
  status, confidence, issues_json, notes, uploaded_at, reviewed_at
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.DB.ExecContext(ctx, q,
		it.ID, it.RequestID, it.DocumentType, it.FileName, it.Extension, it.Size,
		it.Status, it.Confidence, marshalIssues(it.Issues), it.Notes, it.UploadedAt, nullTime(it.ReviewedAt),
	)
	return err
}

func (r *EvidenceRepo) Get(ctx context.Context, id string) (*evidence.Item, error) {
	const q = `
select id, request_id, document_type, file_name, extension, size_bytes,
       status, confidence, issues_json, notes, uploaded_at, reviewed_at
from evidence_items
where id = $1`
	return scanItem(r.DB.QueryRowContext(ctx, q, id))
}

// SaveReview записывает результат ревью (статус, уверенность, замечания).
func (r *EvidenceRepo) SaveReview(ctx context.Context, it *evidence.Item) error {
	const q = `
update evidence_items
set status=$2, confidence=$3, issues_json=$4, notes=$5, reviewed_at=$6
where id=$1`
	res, err := r.DB.ExecContext(ctx, q, it.ID, it.Status, it.Confidence, marshalIssues(it.Issues), it.Notes, nullTime(it.ReviewedAt))
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет доказательство, если оно ещё не одобрено.
func (r *EvidenceRepo) Delete(ctx context.Context, id string) error {
	const q = `delete from evidence_items where id=$1 and status <> $2`
	res, err := r.DB.ExecContext(ctx, q, id, evidence.StatusApproved)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff > 0 {
		return nil
	}
	// ничего не удалили: либо нет такой записи, либо она одобрена
	var status string
	if err := r.DB.QueryRowContext(ctx, `select status from evidence_items where id=$1`, id).Scan(&status); err != nil {
		return err
	}
	return ErrApprovedEvidence
}

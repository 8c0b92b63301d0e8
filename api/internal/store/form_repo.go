package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"assist-bot/api/internal/evidence"
)

type FormRepo struct{ DB *sql.DB }

func NewFormRepo(db *sql.DB) *FormRepo { return &FormRepo{DB: db} }

func (r *FormRepo) Insert(ctx context.Context, f *evidence.FormSubmission) error {
	fields := f.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	js, _ := json.Marshal(fields)
	const q = `
insert into form_submissions (id, request_id, form_type, fields_json, status, score, issues_json, created_at)
values ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.DB.ExecContext(ctx, q, f.ID, f.RequestID, f.FormType, js, f.Status, f.Score, marshalIssues(f.Issues), f.CreatedAt)
	return err
}

// SaveAnalysis обновляет статус, балл и замечания формы.
func (r *FormRepo) SaveAnalysis(ctx context.Context, f *evidence.FormSubmission) error {
	const q = `update form_submissions set form_type=$2, status=$3, score=$4, issues_json=$5 where id=$1`
	res, err := r.DB.ExecContext(ctx, q, f.ID, f.FormType, f.Status, f.Score, marshalIssues(f.Issues))
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

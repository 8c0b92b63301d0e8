package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"assist-bot/api/internal/evidence"
)

type RequestRepo struct{ DB *sql.DB }

func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{DB: db} }

func (r *RequestRepo) Create(ctx context.Context, req *evidence.Request) error {
	if req.Status == "" {
		req.Status = evidence.RequestOpen
	}
	var cat sql.NullString
	if req.ServiceCategory != nil {
		cat = sql.NullString{String: *req.ServiceCategory, Valid: true}
	}
	const q = `
insert into requests (id, incident_type, service_category, status, resolution_notes)
values ($1,$2,$3,$4,$5)`
	_, err := r.DB.ExecContext(ctx, q, req.ID, req.IncidentType, cat, req.Status, req.ResolutionNotes)
	return err
}

// Get загружает заявку вместе с доказательствами и формами (без байтов файлов).
func (r *RequestRepo) Get(ctx context.Context, id string) (*evidence.Request, error) {
	const q = `
select id, incident_type, service_category, status, resolution_notes
from requests
where id = $1`
	var (
		req evidence.Request
		cat sql.NullString
	)
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&req.ID, &req.IncidentType, &cat, &req.Status, &req.ResolutionNotes); err != nil {
		return nil, err
	}
	if cat.Valid {
		s := cat.String
		req.ServiceCategory = &s
	}

	items, err := r.items(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	forms, err := r.forms(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load forms: %w", err)
	}
	req.Items, req.Forms = items, forms
	return &req, nil
}

// UpdateStatus сохраняет статус заявки и заметку о решении.
func (r *RequestRepo) UpdateStatus(ctx context.Context, id, status, notes string) error {
	const q = `update requests set status=$2, resolution_notes=$3, updated_at=now() where id=$1`
	res, err := r.DB.ExecContext(ctx, q, id, status, notes)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RequestRepo) items(ctx context.Context, requestID string) ([]evidence.Item, error) {
	const q = `
select id, request_id, document_type, file_name, extension, size_bytes,
       status, confidence, issues_json, notes, uploaded_at, reviewed_at
from evidence_items
where request_id = $1
order by uploaded_at`
	rows, err := r.DB.QueryContext(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []evidence.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (r *RequestRepo) forms(ctx context.Context, requestID string) ([]evidence.FormSubmission, error) {
	const q = `
select id, request_id, form_type, fields_json, status, score, issues_json, created_at
from form_submissions
where request_id = $1
order by created_at`
	rows, err := r.DB.QueryContext(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	forms := []evidence.FormSubmission{}
	for rows.Next() {
		var (
			f              evidence.FormSubmission
			fields, issues []byte
		)
		if err := rows.Scan(&f.ID, &f.RequestID, &f.FormType, &fields, &f.Status, &f.Score, &issues, &f.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(fields, &f.Fields); err != nil {
			return nil, fmt.Errorf("form %s fields: %w", f.ID, err)
		}
		if err := unmarshalIssues(issues, &f.Issues); err != nil {
			return nil, fmt.Errorf("form %s issues: %w", f.ID, err)
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*evidence.Item, error) {
	var (
		it       evidence.Item
		issues   []byte
		reviewed sql.NullTime
	)
	if err := s.Scan(&it.ID, &it.RequestID, &it.DocumentType, &it.FileName, &it.Extension, &it.Size,
		&it.Status, &it.Confidence, &issues, &it.Notes, &it.UploadedAt, &reviewed); err != nil {
		return nil, err
	}
	if err := unmarshalIssues(issues, &it.Issues); err != nil {
		return nil, fmt.Errorf("item %s issues: %w", it.ID, err)
	}
	it.ReviewedAt = timePtr(reviewed)
	return &it, nil
}

func marshalIssues(issues []evidence.Issue) []byte {
	if issues == nil {
		issues = []evidence.Issue{}
	}
	js, _ := json.Marshal(issues)
	return js
}

func unmarshalIssues(js []byte, out *[]evidence.Issue) error {
	if len(js) == 0 {
		return nil
	}
	return json.Unmarshal(js, out)
}

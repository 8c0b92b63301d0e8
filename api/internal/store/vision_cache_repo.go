package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"assist-bot/api/internal/evidence"
)

// VisionCacheRepo кэширует вердикты vision по (content_hash, engine, document_type),
// чтобы повторная загрузка того же файла не стоила запроса к модели.
type VisionCacheRepo struct{ DB *sql.DB }

func NewVisionCacheRepo(db *sql.DB) *VisionCacheRepo { return &VisionCacheRepo{DB: db} }

// Find возвращает кэш. Если maxAge > 0 и запись старше, вернёт sql.ErrNoRows.
func (r *VisionCacheRepo) Find(ctx context.Context, hash, engine string, dt evidence.DocumentType, maxAge time.Duration) (evidence.VisionVerdict, error) {
	const q = `select verdict_json, created_at
	           from vision_cache
	           where content_hash=$1 and engine=$2 and document_type=$3`
	var (
		js []byte
		ts time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, hash, engine, dt).Scan(&js, &ts); err != nil {
		return evidence.VisionVerdict{}, err
	}
	if maxAge > 0 && time.Since(ts) > maxAge {
		return evidence.VisionVerdict{}, sql.ErrNoRows
	}
	var v evidence.VisionVerdict
	if err := json.Unmarshal(js, &v); err != nil {
		// битый кэш: считаем, что записи нет
		return evidence.VisionVerdict{}, sql.ErrNoRows
	}
	return v, nil
}

func (r *VisionCacheRepo) Upsert(ctx context.Context, hash, engine string, dt evidence.DocumentType, v evidence.VisionVerdict) error {
	js, _ := json.Marshal(v)
	const q = `
insert into vision_cache(content_hash, engine, document_type, verdict_json)
values ($1,$2,$3,$4)
on conflict (content_hash, engine, document_type)
do update set verdict_json=excluded.verdict_json, created_at=now()`
	_, err := r.DB.ExecContext(ctx, q, hash, engine, dt, js)
	return err
}

// PurgeOlderThan удаляет старые записи кэша.
func (r *VisionCacheRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := r.DB.ExecContext(ctx, `delete from vision_cache where created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log"
	"slices"
	"strings"
	"time"

	"assist-bot/api/internal/evidence"
)

type VisionCache interface {
	Find(ctx context.Context, hash, engine string, dt evidence.DocumentType, maxAge time.Duration) (evidence.VisionVerdict, error)
	Upsert(ctx context.Context, hash, engine string, dt evidence.DocumentType, v evidence.VisionVerdict) error
}

// CachedVision отдаёт сохранённый вердикт для уже проверенного содержимого.
type CachedVision struct {
	evidence.VisionChecker
	Cache  VisionCache
	MaxAge time.Duration
}

func (c *CachedVision) Check(ctx context.Context, in evidence.VisionInput) (evidence.VisionVerdict, error) {
	hash := cacheKey(in)
	engine := c.VisionChecker.Name()

	v, err := c.Cache.Find(ctx, hash, engine, in.DocumentType, c.MaxAge)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Printf("vision cache: find %s failed: %v", hash[:12], err)
	}

	v, err = c.VisionChecker.Check(ctx, in)
	if err != nil {
		return v, err
	}
	if err := c.Cache.Upsert(ctx, hash, engine, in.DocumentType, v); err != nil {
		log.Printf("vision cache: upsert %s failed: %v", hash[:12], err)
	}
	return v, nil
}

// cacheKey: содержимое файла плюс отсортированный список проверок правила,
// чтобы смена checks в POLICY_FILE не отдавала старые вердикты.
func cacheKey(in evidence.VisionInput) string {
	checks := slices.Clone(in.Checks)
	slices.Sort(checks)
	h := sha256.New()
	h.Write(in.Image)
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(checks, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

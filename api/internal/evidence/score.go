package evidence

import (
	"context"
	"fmt"
	"log"
	"strings"

	"assist-bot/api/internal/util"
)

const (
	formatPenalty = 0.5
	sizePenalty   = 0.3
)

// Scorer считает уверенность для загруженного документа.
type Scorer struct {
	Tables *Tables
	Vision VisionChecker
}

func NewScorer(t *Tables, v VisionChecker) *Scorer {
	if t == nil {
		t = DefaultTables()
	}
	if v == nil {
		v = NoopVision{}
	}
	return &Scorer{Tables: t, Vision: v}
}

// Score: старт 1.0, -0.5 за формат, -0.3 за размер, дальше vision (если есть).
// Итог не ниже 0; порядок issues сохраняется. Статус выставляет Classify.
func (s *Scorer) Score(ctx context.Context, it *Item) ReviewResult {
	rule := s.Tables.Rule(it.DocumentType)
	score := 1.0
	var issues []Issue

	ext := NormalizeExt(it.Extension)
	if !rule.Allows(ext) {
		issues = append(issues, Issue{
			Code:     IssueInvalidFormat,
			Message:  fmt.Sprintf("format %q is not allowed for %s; allowed: %s", ext, it.DocumentType, strings.Join(rule.AllowedFormats, ", ")),
			Severity: SeverityError,
		})
		score -= formatPenalty
	}
	if it.Size > rule.MaxBytes() {
		issues = append(issues, Issue{
			Code:     IssueFileTooLarge,
			Message:  fmt.Sprintf("file is %d bytes; max for %s is %.0f MB", it.Size, it.DocumentType, rule.MaxSizeMB),
			Severity: SeverityError,
		})
		score -= sizePenalty
	}

	if s.shouldRunVision(rule, it, issues) {
		v, err := s.Vision.Check(ctx, VisionInput{
			DocumentType: it.DocumentType,
			Checks:       rule.Checks,
			Image:        it.Content,
			MIME:         util.PickMIME("", "", it.Content),
		})
		if err != nil {
			log.Printf("review: vision %s failed for item %s: %v", s.Vision.Name(), it.ID, err)
			issues = append(issues, Issue{
				Code:     IssueVisionUnavailable,
				Message:  "automatic content check is unavailable, result is based on file rules only",
				Severity: SeverityWarning,
			})
		} else {
			issues = append(issues, v.Issues...)
			if c := clamp01(v.Confidence); c < score {
				score = c
			}
		}
	}

	if score < 0 {
		score = 0
	}
	return ReviewResult{Confidence: score, Issues: issues}
}

func (s *Scorer) shouldRunVision(rule ValidationRule, it *Item, issues []Issue) bool {
	if s.Vision == nil || !s.Vision.Available() {
		return false
	}
	return len(rule.Checks) > 0 && len(it.Content) > 0 && !hasErrors(issues)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

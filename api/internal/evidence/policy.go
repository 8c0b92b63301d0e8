package evidence

import (
	"fmt"
	"strings"
)

const (
	ApproveThreshold  = 0.80
	ResubmitThreshold = 0.50
)

// Classify переводит уверенность в статус. Границы включительные:
// 0.8 без ошибок -> APPROVED, 0.5 -> NEEDS_RESUBMIT.
func Classify(score float64, issues []Issue) ReviewStatus {
	switch {
	case score >= ApproveThreshold && !hasErrors(issues):
		return StatusApproved
	case score >= ResubmitThreshold:
		return StatusNeedsResubmit
	default:
		return StatusRejected
	}
}

// ApplyReviewPolicy выставляет Status и Notes по уже посчитанным Confidence/Issues.
func ApplyReviewPolicy(res *ReviewResult) {
	res.Status = Classify(res.Confidence, res.Issues)
	switch res.Status {
	case StatusApproved:
		res.Notes = fmt.Sprintf("approved automatically (confidence %.2f)", res.Confidence)
	case StatusNeedsResubmit:
		res.Notes = "please resubmit: " + issueSummary(res.Issues, "low confidence")
	default:
		res.Notes = "rejected: " + issueSummary(res.Issues, "confidence too low")
	}
}

func issueSummary(issues []Issue, fallback string) string {
	if len(issues) == 0 {
		return fallback
	}
	msgs := make([]string, 0, len(issues))
	for _, is := range issues {
		msgs = append(msgs, is.Message)
	}
	return strings.Join(msgs, "; ")
}

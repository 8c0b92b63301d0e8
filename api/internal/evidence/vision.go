package evidence

import (
	"encoding/json"
	"fmt"
	"strings"

	"assist-bot/api/internal/util"
)

const IssueVisionCheckFailed = "VISION_CHECK_FAILED"

// VisionSystemPrompt — общая system-инструкция для vision-движков.
const VisionSystemPrompt = `You review evidence uploaded for an insurance assistance request.
Run every named check against the image and answer ONLY with JSON:
{
  "confidence": number,   // 0..1, how sure you are the document is what it claims to be and usable
  "checks": [{"name": string, "passed": boolean, "note": string}]
}
Do not add text outside JSON.`

// VisionUserPrompt описывает конкретную проверку: тип документа и список проверок.
func VisionUserPrompt(in VisionInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "document_type=%s.", in.DocumentType)
	if len(in.Checks) > 0 {
		fmt.Fprintf(&b, " checks=[%s].", strings.Join(in.Checks, ", "))
	}
	return b.String()
}

type visionWire struct {
	Confidence *float64 `json:"confidence"`
	Checks     []struct {
		Name   string `json:"name"`
		Passed bool   `json:"passed"`
		Note   string `json:"note"`
	} `json:"checks"`
}

// ParseVisionVerdict разбирает JSON-ответ модели. Неудачная проверка даёт issue уровня error.
func ParseVisionVerdict(raw string) (VisionVerdict, error) {
	raw = util.StripCodeFences(raw)
	if raw == "" {
		return VisionVerdict{}, fmt.Errorf("vision: empty response")
	}
	var w visionWire
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return VisionVerdict{}, fmt.Errorf("vision: bad JSON: %w", err)
	}
	if w.Confidence == nil {
		return VisionVerdict{}, fmt.Errorf("vision: confidence is missing")
	}
	v := VisionVerdict{Confidence: clamp01(*w.Confidence)}
	for _, c := range w.Checks {
		if c.Passed {
			continue
		}
		msg := c.Name + " failed"
		if n := strings.TrimSpace(c.Note); n != "" {
			msg += ": " + n
		}
		v.Issues = append(v.Issues, Issue{Code: IssueVisionCheckFailed, Message: msg, Severity: SeverityError})
	}
	return v, nil
}

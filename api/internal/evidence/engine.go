package evidence

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/time/rate"
)

// VisionInput — то, что уходит во внешний vision-анализ.
type VisionInput struct {
	DocumentType DocumentType
	Checks       []string
	Image        []byte
	MIME         string
}

// VisionVerdict — ответ vision-анализа: уверенность 0..1 и найденные проблемы.
type VisionVerdict struct {
	Confidence float64 `json:"confidence"`
	Issues     []Issue `json:"issues"`
}

// VisionChecker выполняет именованные проверки содержимого фото/скана.
type VisionChecker interface {
	Name() string
	// Available == false означает, что проверки не выполняются и штрафов не дают.
	Available() bool
	Check(ctx context.Context, in VisionInput) (VisionVerdict, error)
}

// FormAnalysis — результат анализа формы: балл 0..100.
type FormAnalysis struct {
	Score     int     `json:"score"`
	CanSubmit bool    `json:"can_submit"`
	Issues    []Issue `json:"issues"`
}

type FormAnalyzer interface {
	Analyze(ctx context.Context, form FormSubmission) (FormAnalysis, error)
}

// Notifier сообщает администраторам об эскалации.
type Notifier interface {
	NotifyEscalation(ctx context.Context, req *Request, reason string) error
}

// NoopVision — vision не подключён: проверки объявлены, но не выполняются.
type NoopVision struct{}

func (NoopVision) Name() string    { return "none" }
func (NoopVision) Available() bool { return false }
func (NoopVision) Check(context.Context, VisionInput) (VisionVerdict, error) {
	return VisionVerdict{Confidence: 1}, nil
}

// LimitedVision ограничивает частоту обращений к внешнему vision API.
// Это не ретрай: один вызов на ревью, просто ждём свободный слот.
type LimitedVision struct {
	VisionChecker
	lim *rate.Limiter
}

func NewLimitedVision(v VisionChecker, rps float64, burst int) *LimitedVision {
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Inf, burst)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &LimitedVision{VisionChecker: v, lim: lim}
}

func (l *LimitedVision) Check(ctx context.Context, in VisionInput) (VisionVerdict, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return VisionVerdict{}, err
	}
	return l.VisionChecker.Check(ctx, in)
}

// Engines — зарегистрированные vision-движки по имени.
type Engines struct {
	Gemini VisionChecker
	OpenAI VisionChecker
}

func (e *Engines) GetEngine(name string) (VisionChecker, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "noop":
		return NoopVision{}, nil
	case "gemini":
		if e.Gemini == nil {
			return nil, errors.New("gemini engine is not configured")
		}
		return e.Gemini, nil
	case "gpt", "openai":
		if e.OpenAI == nil {
			return nil, errors.New("openai engine is not configured")
		}
		return e.OpenAI, nil
	default:
		return nil, errors.New("unknown vision engine; use 'none', 'gemini' or 'gpt'")
	}
}

// Package gemini — vision-проверки документов через Google Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"assist-bot/api/internal/evidence"
)

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Available() bool { return e.APIKey != "" && e.Model != "" }

// Check делает один запрос к модели, без ретраев: сбой превращается в предупреждение у Scorer.
func (e *Engine) Check(ctx context.Context, in evidence.VisionInput) (evidence.VisionVerdict, error) {
	if e.APIKey == "" {
		return evidence.VisionVerdict{}, errors.New("GEMINI_API_KEY is empty")
	}
	if len(in.Image) == 0 {
		return evidence.VisionVerdict{}, errors.New("gemini: empty image")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return evidence.VisionVerdict{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return evidence.VisionVerdict{}, fmt.Errorf("gemini: model is nil")
	}
	// Возвращаем строго JSON
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(evidence.VisionSystemPrompt)},
	}

	resp, err := m.GenerateContent(ctx,
		genai.Text(evidence.VisionUserPrompt(in)),
		&genai.Blob{MIMEType: in.MIME, Data: in.Image},
	)
	if err != nil {
		return evidence.VisionVerdict{}, fmt.Errorf("gemini check: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return evidence.VisionVerdict{}, fmt.Errorf("gemini check: empty response")
	}
	return evidence.ParseVisionVerdict(txt)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }

var _ evidence.VisionChecker = (*Engine)(nil)

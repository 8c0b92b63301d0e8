// Package gpt — vision-проверки документов через OpenAI chat completions.
package gpt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assist-bot/api/internal/evidence"
	"assist-bot/api/internal/util"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model string) *Engine {
	return &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   strings.TrimSpace(model),
		BaseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Available() bool { return e.APIKey != "" && e.Model != "" }

func (e *Engine) Check(ctx context.Context, in evidence.VisionInput) (evidence.VisionVerdict, error) {
	if e.APIKey == "" {
		return evidence.VisionVerdict{}, errors.New("OPENAI_API_KEY is empty")
	}
	if len(in.Image) == 0 {
		return evidence.VisionVerdict{}, errors.New("openai: empty image")
	}
	mime := util.PickMIME(in.MIME, "", in.Image)

	body := map[string]any{
		"model": e.Model,
		"messages": []any{
			map[string]any{"role": "system", "content": evidence.VisionSystemPrompt},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": evidence.VisionUserPrompt(in)},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": util.MakeDataURL(mime, in.Image), "detail": "high"}},
				},
			},
		},
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return evidence.VisionVerdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return evidence.VisionVerdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return evidence.VisionVerdict{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return evidence.VisionVerdict{}, fmt.Errorf("openai check %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return evidence.VisionVerdict{}, err
	}
	if len(raw.Choices) == 0 {
		return evidence.VisionVerdict{}, fmt.Errorf("openai check: empty response")
	}
	return evidence.ParseVisionVerdict(raw.Choices[0].Message.Content)
}

var _ evidence.VisionChecker = (*Engine)(nil)

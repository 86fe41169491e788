package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Generator produces content from a provider model. Implementations are
// substitutable collaborators; the engine only needs the credential routed
// to the right provider.
type Generator interface {
	Generate(ctx context.Context, provider Provider, credential, model, prompt string) (string, error)
}

// HTTPGenerator calls each provider's generation endpoint directly.
type HTTPGenerator struct {
	client *http.Client

	// Overridable in tests.
	openAIBase    string
	anthropicBase string
	geminiBase    string
}

func NewHTTPGenerator() *HTTPGenerator {
	return &HTTPGenerator{
		client:        &http.Client{Timeout: 120 * time.Second},
		openAIBase:    "https://api.openai.com",
		anthropicBase: "https://api.anthropic.com",
		geminiBase:    "https://generativelanguage.googleapis.com",
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, provider Provider, credential, model, prompt string) (string, error) {
	switch provider {
	case OpenAI:
		return g.generateOpenAI(ctx, credential, model, prompt)
	case Anthropic:
		return g.generateAnthropic(ctx, credential, model, prompt)
	case Gemini:
		return g.generateGemini(ctx, credential, model, prompt)
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
}

func (g *HTTPGenerator) generateOpenAI(ctx context.Context, credential, model, prompt string) (string, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	err := g.post(ctx, g.openAIBase+"/v1/chat/completions", payload, &body, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+credential)
	})
	if err != nil {
		return "", err
	}
	if len(body.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices for model %s", model)
	}
	return body.Choices[0].Message.Content, nil
}

func (g *HTTPGenerator) generateAnthropic(ctx context.Context, credential, model, prompt string) (string, error) {
	payload := map[string]any{
		"model":      model,
		"max_tokens": 4096,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var body struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	err := g.post(ctx, g.anthropicBase+"/v1/messages", payload, &body, func(req *http.Request) {
		req.Header.Set("x-api-key", credential)
		req.Header.Set("anthropic-version", "2023-06-01")
	})
	if err != nil {
		return "", err
	}
	if len(body.Content) == 0 {
		return "", fmt.Errorf("anthropic returned no content for model %s", model)
	}
	return body.Content[0].Text, nil
}

func (g *HTTPGenerator) generateGemini(ctx context.Context, credential, model, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.geminiBase, url.PathEscape(model), url.QueryEscape(credential))

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}

	var body struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := g.post(ctx, endpoint, payload, &body, nil); err != nil {
		return "", err
	}
	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates for model %s", model)
	}
	return body.Candidates[0].Content.Parts[0].Text, nil
}

func (g *HTTPGenerator) post(ctx context.Context, endpoint string, payload, out any, decorate func(*http.Request)) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", req.URL.Host, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Host, err)
	}
	return nil
}

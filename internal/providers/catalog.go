package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CatalogModel is one entry from a provider's model listing.
type CatalogModel struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Catalog lists the models a credential can reach at a provider. A failing
// provider fails only its own listing; callers degrade per provider.
type Catalog interface {
	ListModels(ctx context.Context, provider Provider, credential string) ([]CatalogModel, error)
}

// HTTPCatalog queries each provider's public model-listing endpoint.
type HTTPCatalog struct {
	client *http.Client

	// Overridable in tests.
	openAIBase    string
	anthropicBase string
	geminiBase    string
}

// NewHTTPCatalog creates a catalog client with sane timeouts.
func NewHTTPCatalog() *HTTPCatalog {
	return &HTTPCatalog{
		client:        &http.Client{Timeout: 10 * time.Second},
		openAIBase:    "https://api.openai.com",
		anthropicBase: "https://api.anthropic.com",
		geminiBase:    "https://generativelanguage.googleapis.com",
	}
}

func (c *HTTPCatalog) ListModels(ctx context.Context, provider Provider, credential string) ([]CatalogModel, error) {
	switch provider {
	case OpenAI:
		return c.listOpenAI(ctx, credential)
	case Anthropic:
		return c.listAnthropic(ctx, credential)
	case Gemini:
		return c.listGemini(ctx, credential)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func (c *HTTPCatalog) listOpenAI(ctx context.Context, credential string) ([]CatalogModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.openAIBase+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("building openai models request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, err
	}

	models := make([]CatalogModel, 0, len(body.Data))
	for _, m := range body.Data {
		models = append(models, CatalogModel{ID: m.ID, DisplayName: m.ID})
	}
	return models, nil
}

func (c *HTTPCatalog) listAnthropic(ctx context.Context, credential string) ([]CatalogModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.anthropicBase+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("building anthropic models request: %w", err)
	}
	req.Header.Set("x-api-key", credential)
	req.Header.Set("anthropic-version", "2023-06-01")

	var body struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, err
	}

	models := make([]CatalogModel, 0, len(body.Data))
	for _, m := range body.Data {
		name := m.DisplayName
		if name == "" {
			name = m.ID
		}
		models = append(models, CatalogModel{ID: m.ID, DisplayName: name})
	}
	return models, nil
}

func (c *HTTPCatalog) listGemini(ctx context.Context, credential string) ([]CatalogModel, error) {
	u := c.geminiBase + "/v1beta/models?key=" + url.QueryEscape(credential)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building gemini models request: %w", err)
	}

	var body struct {
		Models []struct {
			Name        string `json:"name"` // "models/gemini-2.0-flash"
			DisplayName string `json:"displayName"`
		} `json:"models"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, err
	}

	models := make([]CatalogModel, 0, len(body.Models))
	for _, m := range body.Models {
		id := m.Name
		if len(id) > len("models/") && id[:len("models/")] == "models/" {
			id = id[len("models/"):]
		}
		name := m.DisplayName
		if name == "" {
			name = id
		}
		models = append(models, CatalogModel{ID: id, DisplayName: name})
	}
	return models, nil
}

func (c *HTTPCatalog) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
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

package generation

type GenerateRequest struct {
	Model    string `json:"model" validate:"required"`
	Prompt   string `json:"prompt" validate:"required"`
	Followup bool   `json:"followup"`
}

type GenerateResponse struct {
	Content       string `json:"content"`
	Model         string `json:"model"`
	UsedSharedKey bool   `json:"used_shared_key"`
}

// CreateActivityRequest records a saved piece of generated content. The
// content itself is persisted by the product layer; only the quota-relevant
// facts arrive here.
type CreateActivityRequest struct {
	Model    string `json:"model,omitempty"`
	Followup bool   `json:"followup"`
}

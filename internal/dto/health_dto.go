package dto

const (
	ComponentOK       = "ok"
	ComponentDown     = "down"
	ComponentDisabled = "disabled"
)

type HealthResponse struct {
	Status   string `json:"status"`
	LLM      string `json:"llm"`
	Analyzer string `json:"analyzer"`
	Nats     string `json:"nats"`
	Redis    string `json:"redis"`
	Sessions int    `json:"sessions"`
}

package domain

// QuestionType is the single domain tag a chat question is routed to.
type QuestionType string

const (
	QuestionWeather QuestionType = "weather"
	QuestionAlerts  QuestionType = "alerts"
	QuestionCity    QuestionType = "city"
	QuestionSafety  QuestionType = "safety"
	QuestionFlood   QuestionType = "flood"
	QuestionAir     QuestionType = "air"
	QuestionGeneral QuestionType = "general"
)

// ChatAnswer is the per-request copilot response. It is derived from a
// snapshot and never stored.
type ChatAnswer struct {
	QuestionType QuestionType `json:"questionType"`
	Answer       string       `json:"answer"`
	Fallback     bool         `json:"fallback"`
	Model        string       `json:"model,omitempty"`
	Sources      []string     `json:"sources"`
	Diagnostic   string       `json:"diagnostic,omitempty"`
}

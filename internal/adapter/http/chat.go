package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/civic-risk-service/internal/copilot"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

const (
	maxChatBody     = 64 << 10
	maxMessageRunes = 4000
)

var chatValidate = validator.New()

// chatPayload is the loosely typed request body; message is checked for type
// before validation.
type chatPayload struct {
	Message any `json:"message"`
}

// max counts runes, not bytes.
type chatRequest struct {
	Message string `validate:"required,max=4000"`
}

type chatResponse struct {
	Answer         string                 `json:"answer"`
	QuestionType   domain.QuestionType    `json:"questionType"`
	Sources        []string               `json:"sources"`
	Fallback       bool                   `json:"fallback"`
	Model          string                 `json:"model,omitempty"`
	Diagnostic     string                 `json:"diagnostic,omitempty"`
	ContextSummary copilot.ContextSummary `json:"contextSummary"`
}

// decodeChat parses and validates a chat body without touching any upstream.
func decodeChat(r *http.Request) (chatRequest, error) {
	var payload chatPayload
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&payload); err != nil {
		return chatRequest{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	msg, ok := payload.Message.(string)
	if !ok {
		return chatRequest{}, errInvalidMessage
	}
	req := chatRequest{Message: strings.TrimSpace(msg)}
	if err := chatValidate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			return chatRequest{}, fmt.Errorf("message must be at most %d characters", maxMessageRunes)
		}
		return chatRequest{}, errInvalidMessage
	}
	return req, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	req, err := decodeChat(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	snap, err := s.dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errRequestEnded)
		return
	}

	answer := s.copilot.Answer(r.Context(), req.Message, snap)
	sharedobs.WriteJSON(w, http.StatusOK, chatResponse{
		Answer:         answer.Answer,
		QuestionType:   answer.QuestionType,
		Sources:        answer.Sources,
		Fallback:       answer.Fallback,
		Model:          answer.Model,
		Diagnostic:     answer.Diagnostic,
		ContextSummary: copilot.Summarize(snap),
	})
}

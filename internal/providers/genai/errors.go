package genai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mohaweel/internal/domain"
)

// statusError is a non-2xx reply from the API.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.Status)
	}
	return fmt.Sprintf("gemini status %d: %s", e.Status, e.Message)
}

var safetyFinishReasons = map[string]struct{}{
	"SAFETY":                   {},
	"IMAGE_SAFETY":             {},
	"PROHIBITED_CONTENT":       {},
	"IMAGE_PROHIBITED_CONTENT": {},
	"BLOCKLIST":                {},
	"SPII":                     {},
}

func isSafetyReason(reason string) bool {
	_, ok := safetyFinishReasons[strings.ToUpper(strings.TrimSpace(reason))]
	return ok
}

// classifyTransportError maps a failed call onto the user-facing taxonomy.
// Order matters: credential problems win over safety text.
func classifyTransportError(err error) *domain.Error {
	var se *statusError
	if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
		return domain.Credential(err)
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "api key") || strings.Contains(msg, "API_KEY") {
		return domain.Credential(err)
	}
	if strings.Contains(msg, "SAFETY") {
		return domain.Blocked(err)
	}
	return domain.Transport(err)
}

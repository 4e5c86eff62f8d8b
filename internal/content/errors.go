package content

import (
	"fmt"

	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
)

// Reason classifies a GenerationError.
type Reason string

const (
	ReasonCompletion Reason = "completion_failed"
	ReasonNoJSON     Reason = "no_json"
	ReasonMalformed  Reason = "malformed_json"
	ReasonSchema     Reason = "schema_violation"
	ReasonEmpty      Reason = "empty_output"
	ReasonPrompt     Reason = "prompt_failed"
	ReasonUnknown    Reason = "unknown_section"
)

// GenerationError reports that a section could not be produced from the model output.
// It unwraps to an AppError with code generation, whose cause is the original error.
type GenerationError struct {
	Section string
	Reason  Reason
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generate %s: %s: %v", e.Section, e.Reason, e.Cause)
	}
	return fmt.Sprintf("generate %s: %s", e.Section, e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return &apperrors.AppError{
		Code:    apperrors.ErrCodeGeneration,
		Message: fmt.Sprintf("generate %s: %s", e.Section, e.Reason),
		Cause:   e.Cause,
	}
}

func genErr(section string, reason Reason, cause error) *GenerationError {
	return &GenerationError{Section: section, Reason: reason, Cause: cause}
}

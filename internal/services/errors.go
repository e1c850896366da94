package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAidType  = errors.New("invalid study aid type")
	ErrTransport       = errors.New("gemini request failed")
	ErrContentBlocked  = errors.New("content blocked by safety filters")
	ErrEmptyResponse   = errors.New("gemini returned no text")
	ErrImageRequired   = errors.New("an image is required")
	ErrQuestionMissing = errors.New("question cannot be empty")
)

// GenericFormatMessage is shown when a structured reply cannot be used and
// carries no message of its own.
const GenericFormatMessage = "The AI returned data in an unexpected format."

// MalformedResponseError is returned when a Flashcards or Quiz reply does not
// decode into a valid list. Raw keeps the model output for diagnostics.
type MalformedResponseError struct {
	Raw string
	// Embedded is the error message the model put in a non-list reply, if any.
	Embedded string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed aid response: %s: %v", e.UserMessage(), e.Err)
	}
	return "malformed aid response: " + e.UserMessage()
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// UserMessage is the most specific text that can be shown to the user.
func (e *MalformedResponseError) UserMessage() string {
	if e.Embedded != "" {
		return e.Embedded
	}
	return GenericFormatMessage
}

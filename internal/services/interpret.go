package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"study-companion/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateCorrectAnswer, models.QuizQuestion{})
	return v
}

func validateCorrectAnswer(sl validator.StructLevel) {
	q := sl.Current().Interface().(models.QuizQuestion)
	if q.CorrectAnswer != "" && !slices.Contains(q.Options, q.CorrectAnswer) {
		sl.ReportError(q.CorrectAnswer, "correctAnswer", "CorrectAnswer", "oneofoptions", "")
	}
}

// Interpret turns raw model text into typed content for aid type t.
// Summary and Q&A text is used verbatim.
func Interpret(t models.AidType, raw string) (*models.Content, error) {
	switch t {
	case models.AidSummary:
		return &models.Content{Type: t, Summary: raw}, nil
	case models.AidQnA:
		return &models.Content{Type: t, Transcript: []models.ChatMessage{{Role: models.RoleModel, Text: raw}}}, nil
	case models.AidFlashcards:
		cards, err := decodeList[models.Flashcard](raw)
		if err != nil {
			return nil, err
		}
		return &models.Content{Type: t, Flashcards: cards}, nil
	case models.AidQuiz:
		questions, err := decodeList[models.QuizQuestion](raw)
		if err != nil {
			return nil, err
		}
		return &models.Content{Type: t, Quiz: questions}, nil
	default:
		return nil, ErrInvalidAidType
	}
}

func decodeList[T any](raw string) ([]T, error) {
	text := stripCodeFence(raw)

	var probe any
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("decode: %w", err)}
	}

	if _, ok := probe.([]any); !ok {
		return nil, &MalformedResponseError{
			Raw:      raw,
			Embedded: embeddedError(probe),
			Err:      errors.New("reply is not a list"),
		}
	}

	var items []T
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("decode: %w", err)}
	}

	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return nil, &MalformedResponseError{Raw: raw, Err: describeInvalid(i, err)}
		}
	}

	return items, nil
}

// embeddedError digs an error message out of replies shaped like
// {"error":"..."} or {"error":{"message":"..."}}.
func embeddedError(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	switch e := obj["error"].(type) {
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return ""
}

func describeInvalid(index int, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("item %d: field %s failed %q", index, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("item %d: %w", index, err)
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

package models

import "strings"

// AidType is the closed set of study aids the model can produce.
type AidType string

const (
	AidSummary    AidType = "Summary"
	AidFlashcards AidType = "Flashcards"
	AidQuiz       AidType = "Quiz"
	AidQnA        AidType = "Q&A"
)

// AidTypes lists every aid type in the order the selector shows them.
var AidTypes = []AidType{AidSummary, AidFlashcards, AidQuiz, AidQnA}

var aidSlugs = map[string]AidType{
	"summary":    AidSummary,
	"flashcards": AidFlashcards,
	"quiz":       AidQuiz,
	"qna":        AidQnA,
	"q&a":        AidQnA,
}

// ParseAidType accepts either the display name ("Q&A") or the slug ("qna").
func ParseAidType(s string) (AidType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range AidTypes {
		if string(t) == s {
			return t, true
		}
	}
	t, ok := aidSlugs[strings.ToLower(s)]
	return t, ok
}

func (t AidType) Valid() bool {
	return t.Slug() != ""
}

// Slug is the URL and form friendly name of the aid type.
func (t AidType) Slug() string {
	switch t {
	case AidSummary:
		return "summary"
	case AidFlashcards:
		return "flashcards"
	case AidQuiz:
		return "quiz"
	case AidQnA:
		return "qna"
	default:
		return ""
	}
}

// Structured reports whether the model must answer with JSON for this aid.
func (t AidType) Structured() bool {
	return t == AidFlashcards || t == AidQuiz
}

type AidTypeInfo struct {
	ID   AidType `json:"id"`
	Slug string  `json:"slug"`
	Name string  `json:"name"`
}

type SelectAidTypeRequest struct {
	Type string `json:"type"`
}

type GenerateRequest struct {
	// Type is optional; the session's selected aid type is used when empty.
	Type string `json:"type"`
}

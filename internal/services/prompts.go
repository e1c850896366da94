package services

import (
	"github.com/google/generative-ai-go/genai"

	"study-companion/internal/models"
)

const qnaSystemInstruction = "You are a friendly and encouraging study tutor. Your primary goal is to help the user understand the material presented in the document they provided. Answer their questions based *only* on the information within that document. If the answer cannot be found, politely explain that the material doesn't seem to cover that topic. Keep your tone positive, conversational, and helpful. Use markdown for formatting if it helps clarify an answer."

func promptFor(t models.AidType) (string, error) {
	switch t {
	case models.AidSummary:
		return "Provide a concise summary of the key concepts, definitions, and important points from the provided image of study material. Use markdown for formatting.", nil
	case models.AidFlashcards:
		return `Generate 5-10 flashcards based on the content in this image. Each flashcard should have a "term" and a "definition". Respond in the requested JSON format.`, nil
	case models.AidQuiz:
		return `Create a short multiple-choice quiz with 3-5 questions based on this image. For each question, provide a "question", an array of "options", and the "correctAnswer". Ensure the correct answer is one of the options. Respond in the requested JSON format.`, nil
	case models.AidQnA:
		return "Please act as my study tutor for the document I've provided. Start by greeting me warmly, mention the main topic you see, and ask how you can help.", nil
	default:
		return "", ErrInvalidAidType
	}
}

// schemaFor returns the response schema for structured aids and nil for
// free-form text.
func schemaFor(t models.AidType) *genai.Schema {
	if !t.Structured() {
		return nil
	}

	switch t {
	case models.AidFlashcards:
		return &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"term":       {Type: genai.TypeString},
					"definition": {Type: genai.TypeString},
				},
				Required: []string{"term", "definition"},
			},
		}
	case models.AidQuiz:
		return &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"question":      {Type: genai.TypeString},
					"options":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"correctAnswer": {Type: genai.TypeString},
				},
				Required: []string{"question", "options", "correctAnswer"},
			},
		}
	default:
		return nil
	}
}

func systemInstructionFor(t models.AidType) string {
	if t == models.AidQnA {
		return qnaSystemInstruction
	}
	return ""
}

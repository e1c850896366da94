package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-companion/internal/models"
)

func TestInterpret_SummaryVerbatim(t *testing.T) {
	raw := "# Cells\n\n- Mitochondria make ATP\n"

	content, err := Interpret(models.AidSummary, raw)
	require.NoError(t, err)
	assert.Equal(t, models.AidSummary, content.Type)
	assert.Equal(t, raw, content.Summary)
}

func TestInterpret_QnAGreetingBecomesTranscript(t *testing.T) {
	content, err := Interpret(models.AidQnA, "Hi! This page covers photosynthesis.")
	require.NoError(t, err)
	require.Len(t, content.Transcript, 1)
	assert.Equal(t, models.RoleModel, content.Transcript[0].Role)
	assert.Equal(t, "Hi! This page covers photosynthesis.", content.Transcript[0].Text)
}

func TestInterpret_Flashcards(t *testing.T) {
	raw := `[{"term":"Osmosis","definition":"Diffusion of water"},{"term":"ATP","definition":"Energy currency"}]`

	content, err := Interpret(models.AidFlashcards, raw)
	require.NoError(t, err)
	assert.Equal(t, []models.Flashcard{
		{Term: "Osmosis", Definition: "Diffusion of water"},
		{Term: "ATP", Definition: "Energy currency"},
	}, content.Flashcards)
}

func TestInterpret_FlashcardsInCodeFence(t *testing.T) {
	raw := "```json\n[{\"term\":\"A\",\"definition\":\"B\"}]\n```"

	content, err := Interpret(models.AidFlashcards, raw)
	require.NoError(t, err)
	assert.Len(t, content.Flashcards, 1)
}

func TestInterpret_EmptyListIsValid(t *testing.T) {
	content, err := Interpret(models.AidQuiz, "[]")
	require.NoError(t, err)
	assert.Empty(t, content.Quiz)
}

func TestInterpret_Quiz(t *testing.T) {
	raw := `[{"question":"2+2?","options":["3","4"],"correctAnswer":"4"}]`

	content, err := Interpret(models.AidQuiz, raw)
	require.NoError(t, err)
	require.Len(t, content.Quiz, 1)
	assert.Equal(t, "4", content.Quiz[0].CorrectAnswer)
}

func TestInterpret_Malformed(t *testing.T) {
	tests := []struct {
		name        string
		aidType     models.AidType
		raw         string
		userMessage string
	}{
		{"not json", models.AidFlashcards, "Here are your cards!", GenericFormatMessage},
		{"object with error string", models.AidFlashcards, `{"error":"rate limited"}`, "rate limited"},
		{"object with nested error", models.AidQuiz, `{"error":{"message":"quota exceeded"}}`, "quota exceeded"},
		{"object without error", models.AidQuiz, `{"questions":[]}`, GenericFormatMessage},
		{"missing definition", models.AidFlashcards, `[{"term":"A"}]`, GenericFormatMessage},
		{"answer not an option", models.AidQuiz, `[{"question":"Q","options":["a","b"],"correctAnswer":"c"}]`, GenericFormatMessage},
		{"single option", models.AidQuiz, `[{"question":"Q","options":["a"],"correctAnswer":"a"}]`, GenericFormatMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			content, err := Interpret(tc.aidType, tc.raw)
			assert.Nil(t, content)

			var malformed *MalformedResponseError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tc.raw, malformed.Raw)
			assert.Equal(t, tc.userMessage, malformed.UserMessage())
		})
	}
}

func TestInterpret_ReportsInvalidField(t *testing.T) {
	_, err := Interpret(models.AidQuiz, `[{"question":"Q","options":["a","b"],"correctAnswer":"a"},{"question":"Q2","options":["a","b"],"correctAnswer":"z"}]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 1")
	assert.Contains(t, err.Error(), "correctAnswer")
}

func TestInterpret_UnknownType(t *testing.T) {
	_, err := Interpret(models.AidType("Essay"), "text")
	assert.ErrorIs(t, err, ErrInvalidAidType)
}

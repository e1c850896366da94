package services

import (
	"strings"

	"github.com/google/generative-ai-go/genai"

	"study-companion/internal/models"
)

// AidRequest is everything needed for one Gemini call. It is rebuilt from
// scratch for every call; nothing is kept on the Gemini side between calls.
type AidRequest struct {
	AidType           models.AidType
	Prompt            string
	Schema            *genai.Schema
	SystemInstruction string

	// History holds earlier turns of a Q&A conversation, oldest first.
	History []*genai.Content
	// Parts is sent as the final user turn.
	Parts []genai.Part
}

// Structured reports whether the reply must be decoded as JSON.
func (r *AidRequest) Structured() bool {
	return r.Schema != nil
}

// BuildGenerateRequest builds the first request for an aid: the image
// followed by the aid's instruction text.
func BuildGenerateRequest(img *models.Image, t models.AidType) (*AidRequest, error) {
	prompt, err := promptFor(t)
	if err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, ErrImageRequired
	}

	return &AidRequest{
		AidType:           t,
		Prompt:            prompt,
		Schema:            schemaFor(t),
		SystemInstruction: systemInstructionFor(t),
		Parts:             []genai.Part{imagePart(img), genai.Text(prompt)},
	}, nil
}

// BuildFollowUpRequest rebuilds a whole Q&A conversation: the seed turn
// (image + tutor prompt), the prior transcript verbatim, then question.
// history must not contain question itself.
func BuildFollowUpRequest(img *models.Image, history []models.ChatMessage, question string, historyLimit int) (*AidRequest, error) {
	if img.Empty() {
		return nil, ErrImageRequired
	}
	if strings.TrimSpace(question) == "" {
		return nil, ErrQuestionMissing
	}

	prompt, err := promptFor(models.AidQnA)
	if err != nil {
		return nil, err
	}

	kept := TrimHistory(history, historyLimit)
	turns := make([]*genai.Content, 0, len(kept)+1)
	turns = append(turns, &genai.Content{
		Role:  string(models.RoleUser),
		Parts: []genai.Part{imagePart(img), genai.Text(prompt)},
	})
	for _, msg := range kept {
		turns = append(turns, &genai.Content{
			Role:  string(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Text)},
		})
	}

	return &AidRequest{
		AidType:           models.AidQnA,
		Prompt:            prompt,
		SystemInstruction: qnaSystemInstruction,
		History:           turns,
		Parts:             []genai.Part{genai.Text(question)},
	}, nil
}

// TrimHistory keeps at most limit of the most recent transcript entries.
// A cut never leaves a user turn first, so the seed user turn is always
// followed by a model turn. limit <= 0 keeps everything.
func TrimHistory(history []models.ChatMessage, limit int) []models.ChatMessage {
	if limit <= 0 || len(history) <= limit {
		return history
	}

	kept := history[len(history)-limit:]
	for len(kept) > 0 && kept[0].Role == models.RoleUser {
		kept = kept[1:]
	}
	return kept
}

func imagePart(img *models.Image) genai.Part {
	return genai.Blob{MIMEType: img.MIMEType, Data: img.Data}
}

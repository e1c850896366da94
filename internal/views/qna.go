package views

import "study-companion/internal/models"

type Alignment string

const (
	AlignStart Alignment = "start"
	AlignEnd   Alignment = "end"
)

type QnAEntry struct {
	Role  models.ChatRole `json:"role"`
	Text  string          `json:"text"`
	Align Alignment       `json:"align"`
}

type QnAState struct {
	Entries   []QnAEntry `json:"entries"`
	Composing bool       `json:"composing"`
	// InputEnabled is false while a reply is outstanding.
	InputEnabled bool `json:"input_enabled"`
}

// BuildQnA lays out the transcript in order, user turns on the right.
func BuildQnA(transcript []models.ChatMessage, pending bool) QnAState {
	entries := make([]QnAEntry, len(transcript))
	for i, msg := range transcript {
		align := AlignStart
		if msg.Role == models.RoleUser {
			align = AlignEnd
		}
		entries[i] = QnAEntry{Role: msg.Role, Text: msg.Text, Align: align}
	}
	return QnAState{Entries: entries, Composing: pending, InputEnabled: !pending}
}

package models

import "time"

// Content is the generated study aid. Exactly one of the payload fields is
// set, matching Type.
type Content struct {
	Type       AidType        `json:"type"`
	Summary    string         `json:"summary,omitempty"`
	Flashcards []Flashcard    `json:"flashcards,omitempty"`
	Quiz       []QuizQuestion `json:"quiz,omitempty"`
	Transcript []ChatMessage  `json:"transcript,omitempty"`
}

// Image is an uploaded picture of notes. It only ever lives in memory.
type Image struct {
	Data       []byte    `json:"-"`
	MIMEType   string    `json:"mime_type"`
	Filename   string    `json:"filename"`
	Size       int       `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (i *Image) Empty() bool {
	return i == nil || len(i.Data) == 0
}

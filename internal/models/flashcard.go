package models

type Flashcard struct {
	Term       string `json:"term" validate:"required"`
	Definition string `json:"definition" validate:"required"`
}

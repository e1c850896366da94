package models

// QuizQuestion is one multiple-choice question. CorrectAnswer is expected to
// be one of Options; the interpreter rejects questions where it is not.
type QuizQuestion struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"min=2,dive,required"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
}

type QuizAnswerRequest struct {
	Option string `json:"option"`
}

package views

import (
	"errors"
	"fmt"
	"slices"

	"study-companion/internal/models"
)

const (
	QuizPlaceholder = "No quiz questions were generated."
	NotAnswered     = "Not answered"
)

var (
	ErrInvalidOption = errors.New("option is not one of the question's options")
	ErrNoSelection   = errors.New("select an answer first")
	ErrQuizFinished  = errors.New("quiz is finished")
)

// QuizView walks the questions one at a time and keeps at most one answer
// per question index.
type QuizView struct {
	current  int
	answers  map[int]string
	finished bool
}

func NewQuizView() *QuizView {
	return &QuizView{answers: make(map[int]string)}
}

type QuizOption struct {
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

type QuizResult struct {
	Number        int    `json:"number"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
}

type QuizState struct {
	Empty       bool   `json:"empty"`
	Placeholder string `json:"placeholder,omitempty"`
	Finished    bool   `json:"finished"`

	Index      int          `json:"index"`
	Total      int          `json:"total"`
	Position   string       `json:"position,omitempty"`
	Question   string       `json:"question,omitempty"`
	Options    []QuizOption `json:"options,omitempty"`
	NextLabel  string       `json:"next_label,omitempty"`
	CanAdvance bool         `json:"can_advance"`

	Score     int          `json:"score"`
	ScoreLine string       `json:"score_line,omitempty"`
	Results   []QuizResult `json:"results,omitempty"`
}

func (v *QuizView) Reset() {
	v.current = 0
	v.answers = make(map[int]string)
	v.finished = false
}

// Select records option as the answer to the current question, replacing
// any earlier choice.
func (v *QuizView) Select(questions []models.QuizQuestion, option string) error {
	if v.finished || v.current >= len(questions) {
		return ErrQuizFinished
	}
	if !slices.Contains(questions[v.current].Options, option) {
		return ErrInvalidOption
	}
	v.answers[v.current] = option
	return nil
}

// Next moves to the following question, or to the results after the last.
func (v *QuizView) Next(questions []models.QuizQuestion) error {
	if v.finished || v.current >= len(questions) {
		return ErrQuizFinished
	}
	if _, ok := v.answers[v.current]; !ok {
		return ErrNoSelection
	}
	if v.current < len(questions)-1 {
		v.current++
	} else {
		v.finished = true
	}
	return nil
}

// Score counts the questions whose recorded answer equals the correct one.
// Unanswered questions never match.
func Score(questions []models.QuizQuestion, answers map[int]string) int {
	score := 0
	for i, q := range questions {
		if a, ok := answers[i]; ok && a == q.CorrectAnswer {
			score++
		}
	}
	return score
}

func ScoreLine(score, total int) string {
	return fmt.Sprintf("You scored %d out of %d.", score, total)
}

func (v *QuizView) State(questions []models.QuizQuestion) QuizState {
	n := len(questions)
	if n == 0 {
		return QuizState{Empty: true, Placeholder: QuizPlaceholder}
	}
	if v.current >= n {
		v.Reset()
	}

	if v.finished {
		score := Score(questions, v.answers)
		results := make([]QuizResult, n)
		for i, q := range questions {
			answer, ok := v.answers[i]
			if !ok {
				answer = NotAnswered
			}
			results[i] = QuizResult{
				Number:        i + 1,
				Question:      q.Question,
				Answer:        answer,
				CorrectAnswer: q.CorrectAnswer,
				Correct:       ok && answer == q.CorrectAnswer,
			}
		}
		return QuizState{
			Finished:  true,
			Total:     n,
			Score:     score,
			ScoreLine: ScoreLine(score, n),
			Results:   results,
		}
	}

	q := questions[v.current]
	selected, hasSelection := v.answers[v.current]
	options := make([]QuizOption, len(q.Options))
	for i, o := range q.Options {
		options[i] = QuizOption{Text: o, Selected: hasSelection && o == selected}
	}

	label := "Next Question"
	if v.current == n-1 {
		label = "Show Results"
	}

	return QuizState{
		Index:      v.current,
		Total:      n,
		Position:   fmt.Sprintf("Question %d of %d", v.current+1, n),
		Question:   q.Question,
		Options:    options,
		NextLabel:  label,
		CanAdvance: hasSelection,
	}
}

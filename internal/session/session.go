// Package session keeps each browser's working state in memory: the
// uploaded image, the selected aid type, the generated content and the view
// state of whichever aid is showing.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"study-companion/internal/models"
	"study-companion/internal/services"
	"study-companion/internal/views"
)

var (
	ErrNotFound             = errors.New("session not found")
	ErrNoImage              = errors.New("no image selected")
	ErrGenerationInProgress = errors.New("a generation is already in progress")
	ErrReplyInProgress      = errors.New("a reply is already in progress")
	ErrNotConversation      = errors.New("no Q&A conversation to continue")
	ErrWrongAidType         = errors.New("current content is not of this aid type")
	ErrStale                = errors.New("result superseded by a newer request")
)

// User-facing messages.
const (
	NoImageMessage          = "Please upload an image first."
	GenerationFailedMessage = "Failed to generate study materials. Please try again."
	ReplyFailedMessage      = "Sorry, I encountered an error. Please try again."
)

// guard is a single in-flight slot. Every begin hands out a new ticket and
// only the current ticket may commit. invalidate moves the current ticket on
// so a running result is dropped, but the slot stays taken until its holder
// finishes.
type guard struct {
	ticket uint64
	holder uint64 // ticket occupying the slot, 0 when free
}

func (g *guard) busy() bool {
	return g.holder != 0
}

func (g *guard) begin() (uint64, bool) {
	if g.busy() {
		return 0, false
	}
	g.ticket++
	g.holder = g.ticket
	return g.ticket, true
}

// finish frees the slot if ticket holds it and reports whether its result
// may still be applied.
func (g *guard) finish(ticket uint64) bool {
	if ticket == 0 || g.holder != ticket {
		return false
	}
	g.holder = 0
	return g.ticket == ticket
}

func (g *guard) invalidate() {
	g.ticket++
}

type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu         sync.Mutex
	image      *models.Image
	aidType    models.AidType
	content    *models.Content
	lastError  string
	generation guard
	reply      guard
	flashcards *views.FlashcardsView
	quiz       *views.QuizView
	lastSeen   time.Time
}

func newSession(now time.Time, flipDelay time.Duration) *Session {
	return &Session{
		ID:         uuid.New(),
		CreatedAt:  now,
		aidType:    models.AidSummary,
		flashcards: views.NewFlashcardsView(flipDelay),
		quiz:       views.NewQuizView(),
		lastSeen:   now,
	}
}

// GenerationJob is what a generation needs once the session lock is gone.
type GenerationJob struct {
	Ticket  uint64
	AidType models.AidType
	Image   *models.Image
}

// ReplyJob carries a follow-up question together with the transcript as it
// was before the question was appended.
type ReplyJob struct {
	Ticket   uint64
	Image    *models.Image
	History  []models.ChatMessage
	Question string
}

// SetImage replaces the image. Content, errors and anything in flight
// belong to the old image and are dropped.
func (s *Session) SetImage(img *models.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.image = img
	s.discardLocked()
}

func (s *Session) RemoveImage() {
	s.SetImage(nil)
}

func (s *Session) Image() *models.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

func (s *Session) AidType() models.AidType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aidType
}

// SelectAidType changes the aid to generate next. A generation already
// running for the previous type will not be applied, but it keeps the
// generation slot until it returns.
func (s *Session) SelectAidType(t models.AidType) error {
	if !t.Valid() {
		return services.ErrInvalidAidType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t != s.aidType {
		s.aidType = t
		if s.generation.busy() {
			s.generation.invalidate()
		}
	}
	return nil
}

// SetError shows message in place of content until the next action
// clears it.
func (s *Session) SetError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = message
}

// BeginGeneration claims the generation slot for the selected aid type and
// clears the previous result.
func (s *Session) BeginGeneration() (*GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginGenerationLocked()
}

// BeginGenerationFor selects t and claims the generation slot in one step.
// While a generation is outstanding the selection is left untouched.
func (s *Session) BeginGenerationFor(t models.AidType) (*GenerationJob, error) {
	if !t.Valid() {
		return nil, services.ErrInvalidAidType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.image.Empty() && s.generation.busy() {
		return nil, ErrGenerationInProgress
	}
	s.aidType = t
	return s.beginGenerationLocked()
}

func (s *Session) beginGenerationLocked() (*GenerationJob, error) {
	if s.image.Empty() {
		s.lastError = NoImageMessage
		return nil, ErrNoImage
	}

	ticket, ok := s.generation.begin()
	if !ok {
		return nil, ErrGenerationInProgress
	}

	s.content = nil
	s.lastError = ""
	s.reply.invalidate()
	s.resetViewsLocked()

	return &GenerationJob{Ticket: ticket, AidType: s.aidType, Image: s.image}, nil
}

// CompleteGeneration stores content if ticket is still current.
func (s *Session) CompleteGeneration(ticket uint64, content *models.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.generation.finish(ticket) {
		return ErrStale
	}

	s.content = content
	s.lastError = ""
	s.resetViewsLocked()
	return nil
}

// FailGeneration records message as the visible error if ticket is still
// current.
func (s *Session) FailGeneration(ticket uint64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.generation.finish(ticket) {
		return ErrStale
	}

	s.content = nil
	s.lastError = message
	return nil
}

// AbortGeneration releases the slot without touching content, for jobs that
// never got to run.
func (s *Session) AbortGeneration(ticket uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation.finish(ticket)
}

// BeginReply appends question to the transcript and claims the reply slot.
func (s *Session) BeginReply(question string) (*ReplyJob, error) {
	if strings.TrimSpace(question) == "" {
		return nil, services.ErrQuestionMissing
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image.Empty() {
		return nil, ErrNoImage
	}
	if s.aidType != models.AidQnA || s.content == nil || s.content.Type != models.AidQnA {
		return nil, ErrNotConversation
	}

	ticket, ok := s.reply.begin()
	if !ok {
		return nil, ErrReplyInProgress
	}

	history := append([]models.ChatMessage(nil), s.content.Transcript...)
	s.content.Transcript = append(s.content.Transcript, models.ChatMessage{Role: models.RoleUser, Text: question})

	return &ReplyJob{Ticket: ticket, Image: s.image, History: history, Question: question}, nil
}

func (s *Session) CompleteReply(ticket uint64, text string) error {
	return s.finishReply(ticket, text)
}

// FailReply answers on the model's behalf so the conversation keeps its
// shape.
func (s *Session) FailReply(ticket uint64) error {
	return s.finishReply(ticket, ReplyFailedMessage)
}

func (s *Session) finishReply(ticket uint64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.reply.finish(ticket) || s.content == nil {
		return ErrStale
	}

	s.content.Transcript = append(s.content.Transcript, models.ChatMessage{Role: models.RoleModel, Text: text})
	return nil
}

func (s *Session) FlipCard() error {
	return s.withFlashcards(s.flashcards.Flip)
}

func (s *Session) NextCard() error {
	return s.withFlashcards(s.flashcards.Next)
}

func (s *Session) PrevCard() error {
	return s.withFlashcards(s.flashcards.Prev)
}

func (s *Session) withFlashcards(fn func(n int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.content == nil || s.content.Type != models.AidFlashcards {
		return ErrWrongAidType
	}
	fn(len(s.content.Flashcards))
	return nil
}

func (s *Session) AnswerQuestion(option string) error {
	return s.withQuiz(func(qs []models.QuizQuestion) error {
		return s.quiz.Select(qs, option)
	})
}

func (s *Session) NextQuestion() error {
	return s.withQuiz(s.quiz.Next)
}

func (s *Session) ResetQuiz() error {
	return s.withQuiz(func([]models.QuizQuestion) error {
		s.quiz.Reset()
		return nil
	})
}

func (s *Session) withQuiz(fn func([]models.QuizQuestion) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.content == nil || s.content.Type != models.AidQuiz {
		return ErrWrongAidType
	}
	return fn(s.content.Quiz)
}

// Snapshot is a consistent, render-ready copy of the session.
type Snapshot struct {
	ID          uuid.UUID       `json:"id"`
	AidType     models.AidType  `json:"aid_type"`
	Image       *models.Image   `json:"image,omitempty"`
	Generating  bool            `json:"generating"`
	Replying    bool            `json:"replying"`
	Error       string          `json:"error,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	Content     *models.Content `json:"content,omitempty"`

	Summary    []string               `json:"summary,omitempty"`
	Flashcards *views.FlashcardsState `json:"flashcards,omitempty"`
	Quiz       *views.QuizState       `json:"quiz,omitempty"`
	QnA        *views.QnAState        `json:"qna,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.ID,
		AidType:    s.aidType,
		Generating: s.generation.busy(),
		Replying:   s.reply.busy(),
		Error:      s.lastError,
	}

	if s.image != nil {
		img := *s.image
		img.Data = nil
		snap.Image = &img
	}

	if s.content == nil {
		if !snap.Generating && snap.Error == "" {
			snap.Placeholder = views.ContentPlaceholder
		}
		return snap
	}

	content := cloneContent(s.content)
	snap.Content = content

	switch content.Type {
	case models.AidSummary:
		snap.Summary = views.SummaryParagraphs(content.Summary)
	case models.AidFlashcards:
		state := s.flashcards.State(content.Flashcards)
		snap.Flashcards = &state
	case models.AidQuiz:
		state := s.quiz.State(content.Quiz)
		snap.Quiz = &state
	case models.AidQnA:
		state := views.BuildQnA(content.Transcript, s.reply.busy())
		snap.QnA = &state
	}

	return snap
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) discardLocked() {
	s.content = nil
	s.lastError = ""
	s.generation.invalidate()
	s.reply.invalidate()
	s.resetViewsLocked()
}

func (s *Session) resetViewsLocked() {
	s.flashcards.Reset()
	s.quiz.Reset()
}

func cloneContent(c *models.Content) *models.Content {
	out := *c
	out.Flashcards = append([]models.Flashcard(nil), c.Flashcards...)
	out.Quiz = append([]models.QuizQuestion(nil), c.Quiz...)
	out.Transcript = append([]models.ChatMessage(nil), c.Transcript...)
	return &out
}

package session

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-companion/internal/metrics"
	"study-companion/internal/models"
	"study-companion/internal/services"
	"study-companion/internal/views"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	sess := newSession(time.Now(), 0)
	sess.SetImage(&models.Image{Data: []byte("img"), MIMEType: "image/png"})
	return sess
}

func generate(t *testing.T, sess *Session, content *models.Content) {
	t.Helper()
	require.NoError(t, sess.SelectAidType(content.Type))
	job, err := sess.BeginGeneration()
	require.NoError(t, err)
	require.NoError(t, sess.CompleteGeneration(job.Ticket, content))
}

func TestGeneration_ReplacesContent(t *testing.T) {
	sess := newTestSession(t)

	generate(t, sess, &models.Content{Type: models.AidFlashcards, Flashcards: []models.Flashcard{{Term: "A", Definition: "1"}}})
	generate(t, sess, &models.Content{Type: models.AidFlashcards, Flashcards: []models.Flashcard{{Term: "B", Definition: "2"}}})

	snap := sess.Snapshot()
	require.NotNil(t, snap.Content)
	assert.Equal(t, []models.Flashcard{{Term: "B", Definition: "2"}}, snap.Content.Flashcards)
	assert.Equal(t, "1 / 1", snap.Flashcards.Position)
}

func TestBeginGeneration_RequiresImage(t *testing.T) {
	sess := newSession(time.Now(), 0)

	_, err := sess.BeginGeneration()
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, NoImageMessage, sess.Snapshot().Error)
}

func TestBeginGeneration_RejectsSecondRequest(t *testing.T) {
	sess := newTestSession(t)

	job, err := sess.BeginGeneration()
	require.NoError(t, err)

	_, err = sess.BeginGeneration()
	assert.ErrorIs(t, err, ErrGenerationInProgress)
	assert.True(t, sess.Snapshot().Generating)

	require.NoError(t, sess.FailGeneration(job.Ticket, GenerationFailedMessage))
	_, err = sess.BeginGeneration()
	assert.NoError(t, err, "failure releases the guard")
}

func TestGeneration_StaleAfterImageChange(t *testing.T) {
	sess := newTestSession(t)

	job, err := sess.BeginGeneration()
	require.NoError(t, err)

	sess.SetImage(&models.Image{Data: []byte("other"), MIMEType: "image/jpeg"})

	err = sess.CompleteGeneration(job.Ticket, &models.Content{Type: models.AidSummary, Summary: "old"})
	assert.ErrorIs(t, err, ErrStale)

	snap := sess.Snapshot()
	assert.Nil(t, snap.Content)
	assert.False(t, snap.Generating)
	assert.Equal(t, views.ContentPlaceholder, snap.Placeholder)
}

func TestGeneration_StaleAfterAidTypeChange(t *testing.T) {
	sess := newTestSession(t)

	job, err := sess.BeginGeneration()
	require.NoError(t, err)
	require.NoError(t, sess.SelectAidType(models.AidQuiz))

	_, err = sess.BeginGeneration()
	assert.ErrorIs(t, err, ErrGenerationInProgress, "the orphaned job still holds the slot")
	assert.True(t, sess.Snapshot().Generating)

	assert.ErrorIs(t, sess.FailGeneration(job.Ticket, "boom"), ErrStale)
	snap := sess.Snapshot()
	assert.Empty(t, snap.Error)
	assert.False(t, snap.Generating)

	next, err := sess.BeginGeneration()
	require.NoError(t, err)
	assert.Equal(t, models.AidQuiz, next.AidType)
}

func TestBeginGenerationFor_RejectsWhileBusy(t *testing.T) {
	sess := newTestSession(t)

	job, err := sess.BeginGenerationFor(models.AidQuiz)
	require.NoError(t, err)
	assert.Equal(t, models.AidQuiz, job.AidType)

	_, err = sess.BeginGenerationFor(models.AidFlashcards)
	assert.ErrorIs(t, err, ErrGenerationInProgress)
	assert.Equal(t, models.AidQuiz, sess.AidType(), "a rejected request leaves the selection alone")

	require.NoError(t, sess.CompleteGeneration(job.Ticket, &models.Content{Type: models.AidQuiz}))

	_, err = sess.BeginGenerationFor(models.AidType("Essay"))
	assert.ErrorIs(t, err, services.ErrInvalidAidType)

	next, err := sess.BeginGenerationFor(models.AidFlashcards)
	require.NoError(t, err)
	assert.Equal(t, models.AidFlashcards, next.AidType)
}

func TestGeneration_OnlyLatestTicketCommits(t *testing.T) {
	sess := newTestSession(t)

	first, err := sess.BeginGeneration()
	require.NoError(t, err)
	sess.RemoveImage()
	sess.SetImage(&models.Image{Data: []byte("img"), MIMEType: "image/png"})

	_, err = sess.BeginGeneration()
	assert.ErrorIs(t, err, ErrGenerationInProgress)

	assert.ErrorIs(t, sess.CompleteGeneration(first.Ticket, &models.Content{Type: models.AidSummary, Summary: "first"}), ErrStale)

	second, err := sess.BeginGeneration()
	require.NoError(t, err)
	assert.Greater(t, second.Ticket, first.Ticket)

	assert.ErrorIs(t, sess.CompleteGeneration(first.Ticket, &models.Content{Type: models.AidSummary, Summary: "first"}), ErrStale)
	require.NoError(t, sess.CompleteGeneration(second.Ticket, &models.Content{Type: models.AidSummary, Summary: "second"}))
	assert.Equal(t, "second", sess.Snapshot().Content.Summary)
}

func TestFailGeneration_DiscardsContent(t *testing.T) {
	sess := newTestSession(t)
	generate(t, sess, &models.Content{Type: models.AidSummary, Summary: "old"})

	job, err := sess.BeginGeneration()
	require.NoError(t, err)
	require.NoError(t, sess.FailGeneration(job.Ticket, "rate limited"))

	snap := sess.Snapshot()
	assert.Nil(t, snap.Content)
	assert.Equal(t, "rate limited", snap.Error)
	assert.Empty(t, snap.Placeholder)
}

func TestSelectAidType_Invalid(t *testing.T) {
	sess := newTestSession(t)
	assert.ErrorIs(t, sess.SelectAidType("Essay"), services.ErrInvalidAidType)
	assert.Equal(t, models.AidSummary, sess.AidType())
}

func startConversation(t *testing.T) *Session {
	t.Helper()
	sess := newTestSession(t)
	generate(t, sess, &models.Content{
		Type:       models.AidQnA,
		Transcript: []models.ChatMessage{{Role: models.RoleModel, Text: "Hi, this page is about cells."}},
	})
	return sess
}

func TestReply_TranscriptHasTwoNPlusOneEntries(t *testing.T) {
	sess := startConversation(t)

	const n = 4
	for i := 0; i < n; i++ {
		job, err := sess.BeginReply("question?")
		require.NoError(t, err)
		assert.Len(t, job.History, 2*i+1, "history excludes the new question")

		if i%2 == 0 {
			require.NoError(t, sess.CompleteReply(job.Ticket, "answer"))
		} else {
			require.NoError(t, sess.FailReply(job.Ticket))
		}
	}

	transcript := sess.Snapshot().Content.Transcript
	require.Len(t, transcript, 2*n+1)
	for i, msg := range transcript {
		want := models.RoleModel
		if i%2 == 1 {
			want = models.RoleUser
		}
		assert.Equal(t, want, msg.Role, "entry %d", i)
	}
	assert.Equal(t, ReplyFailedMessage, transcript[4].Text)
}

func TestBeginReply_Guards(t *testing.T) {
	sess := startConversation(t)

	_, err := sess.BeginReply("  ")
	assert.ErrorIs(t, err, services.ErrQuestionMissing)

	job, err := sess.BeginReply("first")
	require.NoError(t, err)

	_, err = sess.BeginReply("second")
	assert.ErrorIs(t, err, ErrReplyInProgress)

	snap := sess.Snapshot()
	assert.True(t, snap.Replying)
	assert.True(t, snap.QnA.Composing)
	assert.Equal(t, views.AlignEnd, snap.QnA.Entries[len(snap.QnA.Entries)-1].Align)

	require.NoError(t, sess.CompleteReply(job.Ticket, "done"))
	assert.False(t, sess.Snapshot().Replying)
}

func TestBeginReply_NeedsConversation(t *testing.T) {
	sess := newTestSession(t)
	generate(t, sess, &models.Content{Type: models.AidSummary, Summary: "text"})

	_, err := sess.BeginReply("why?")
	assert.ErrorIs(t, err, ErrNotConversation)

	sess.RemoveImage()
	_, err = sess.BeginReply("why?")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestReply_StaleAfterImageRemoved(t *testing.T) {
	sess := startConversation(t)

	job, err := sess.BeginReply("question")
	require.NoError(t, err)
	sess.RemoveImage()

	assert.ErrorIs(t, sess.CompleteReply(job.Ticket, "late"), ErrStale)
	assert.Nil(t, sess.Snapshot().Content)
}

func TestFlashcardActions(t *testing.T) {
	sess := newTestSession(t)
	assert.ErrorIs(t, sess.FlipCard(), ErrWrongAidType)

	generate(t, sess, &models.Content{Type: models.AidFlashcards, Flashcards: []models.Flashcard{
		{Term: "A", Definition: "1"}, {Term: "B", Definition: "2"},
	}})

	require.NoError(t, sess.NextCard())
	assert.Equal(t, "2 / 2", sess.Snapshot().Flashcards.Position)
	require.NoError(t, sess.FlipCard())
	assert.True(t, sess.Snapshot().Flashcards.Revealed)
	require.NoError(t, sess.PrevCard())
	assert.Equal(t, "1 / 2", sess.Snapshot().Flashcards.Position)
}

func TestQuizActions(t *testing.T) {
	sess := newTestSession(t)
	assert.ErrorIs(t, sess.AnswerQuestion("x"), ErrWrongAidType)

	generate(t, sess, &models.Content{Type: models.AidQuiz, Quiz: []models.QuizQuestion{
		{Question: "Q1", Options: []string{"a", "b"}, CorrectAnswer: "a"},
		{Question: "Q2", Options: []string{"c", "d"}, CorrectAnswer: "d"},
	}})

	assert.ErrorIs(t, sess.NextQuestion(), views.ErrNoSelection)
	require.NoError(t, sess.AnswerQuestion("a"))
	require.NoError(t, sess.NextQuestion())
	require.NoError(t, sess.AnswerQuestion("c"))
	require.NoError(t, sess.NextQuestion())

	quiz := sess.Snapshot().Quiz
	require.True(t, quiz.Finished)
	assert.Equal(t, "You scored 1 out of 2.", quiz.ScoreLine)

	require.NoError(t, sess.ResetQuiz())
	quiz = sess.Snapshot().Quiz
	assert.False(t, quiz.Finished)
	assert.Equal(t, 0, quiz.Index)
	assert.False(t, quiz.CanAdvance)
}

func TestSnapshot_HidesImageBytes(t *testing.T) {
	sess := newTestSession(t)
	snap := sess.Snapshot()
	require.NotNil(t, snap.Image)
	assert.Nil(t, snap.Image.Data)
	assert.NotEmpty(t, sess.Image().Data)
}

func TestStore_CreateGetSweep(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	st := NewStore(time.Hour, 0, m, zerolog.Nop())

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return clock }

	idle := st.Create()
	active := st.Create()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveSessions))

	clock = clock.Add(50 * time.Minute)
	_, err := st.Get(active.ID)
	require.NoError(t, err)

	clock = clock.Add(20 * time.Minute)
	assert.Equal(t, 1, st.Sweep())

	_, err = st.Get(idle.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Get(active.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	st.Delete(active.ID)
	assert.Zero(t, st.Len())
}

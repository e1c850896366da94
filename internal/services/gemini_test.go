package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"study-companion/internal/metrics"
	"study-companion/internal/models"
)

type reply struct {
	text string
	err  error
}

// fakeBackend plays back canned replies and records every request.
type fakeBackend struct {
	mu       sync.Mutex
	replies  []reply
	requests []*AidRequest
}

func (f *fakeBackend) GenerateText(ctx context.Context, req *AidRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.text, r.err
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestService(t *testing.T, backend textGenerator, maxRetries int) (*GeminiService, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	s := newGeminiService(backend, GeminiConfig{
		ConcurrentRequests: 2,
		MaxRetries:         maxRetries,
		HistoryLimit:       4,
	}, m, zerolog.Nop())
	s.retryBase = time.Millisecond
	return s, m
}

func TestGenerate_Flashcards(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{text: `[{"term":"Cell","definition":"Unit of life"}]`}}}
	s, m := newTestService(t, backend, 0)

	content, err := s.Generate(context.Background(), testImage(), models.AidFlashcards)
	require.NoError(t, err)
	assert.Equal(t, []models.Flashcard{{Term: "Cell", Definition: "Unit of life"}}, content.Flashcards)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeminiRequests.WithLabelValues("flashcards", "ok")))
}

func TestGenerate_MalformedIsCounted(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{text: `{"error":"rate limited"}`}}}
	s, m := newTestService(t, backend, 0)

	_, err := s.Generate(context.Background(), testImage(), models.AidQuiz)

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "rate limited", malformed.UserMessage())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MalformedReplies.WithLabelValues("quiz")))
}

func TestGenerate_NoImageSkipsCall(t *testing.T) {
	backend := &fakeBackend{}
	s, _ := newTestService(t, backend, 0)

	_, err := s.Generate(context.Background(), nil, models.AidSummary)
	assert.ErrorIs(t, err, ErrImageRequired)
	assert.Zero(t, backend.calls())
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	unavailable, ok := apierror.FromError(status.Error(codes.Unavailable, "overloaded"))
	require.True(t, ok)

	backend := &fakeBackend{replies: []reply{
		{err: unavailable},
		{err: &googleapi.Error{Code: 429}},
		{text: "A summary"},
	}}
	s, m := newTestService(t, backend, 2)

	content, err := s.Generate(context.Background(), testImage(), models.AidSummary)
	require.NoError(t, err)
	assert.Equal(t, "A summary", content.Summary)
	assert.Equal(t, 3, backend.calls())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GeminiRetries))
}

func TestGenerate_GivesUpAfterMaxRetries(t *testing.T) {
	backend := &fakeBackend{replies: []reply{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{text: "too late"},
	}}
	s, m := newTestService(t, backend, 1)

	_, err := s.Generate(context.Background(), testImage(), models.AidSummary)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 2, backend.calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeminiRequests.WithLabelValues("summary", "error")))
}

func TestGenerate_PermanentFailureIsNotRetried(t *testing.T) {
	backend := &fakeBackend{replies: []reply{
		{err: &googleapi.Error{Code: 400, Message: "bad image"}},
		{text: "unused"},
	}}
	s, _ := newTestService(t, backend, 3)

	_, err := s.Generate(context.Background(), testImage(), models.AidSummary)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, backend.calls())
}

func TestGenerate_BlockedContent(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{err: ErrContentBlocked}}}
	s, _ := newTestService(t, backend, 3)

	_, err := s.Generate(context.Background(), testImage(), models.AidSummary)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrContentBlocked)
	assert.Equal(t, 1, backend.calls())
}

func TestGenerate_CancelledContext(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{text: "unused"}}}
	s, _ := newTestService(t, backend, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Drain the slots so acquireRate has to wait on the context.
	<-s.rateChan
	<-s.rateChan
	_, err := s.Generate(ctx, testImage(), models.AidSummary)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, backend.calls())
}

func TestAsk_SendsTrimmedHistory(t *testing.T) {
	backend := &fakeBackend{replies: []reply{{text: "ATP is the energy currency."}}}
	s, _ := newTestService(t, backend, 0)

	history := transcript(3)
	answer, err := s.Ask(context.Background(), testImage(), history, "What is ATP?")
	require.NoError(t, err)
	assert.Equal(t, "ATP is the energy currency.", answer)

	require.Equal(t, 1, backend.calls())
	req := backend.requests[0]
	// seed turn + TrimHistory(history, 4), which drops the leading user turn
	assert.Len(t, req.History, 1+3)
	assert.Equal(t, models.AidQnA, req.AidType)
}

func TestIsTransient(t *testing.T) {
	internal, _ := apierror.FromError(status.Error(codes.Internal, "boom"))
	invalid, _ := apierror.FromError(status.Error(codes.InvalidArgument, "bad"))

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", errors.New("dial tcp: i/o timeout"), true},
		{"grpc internal", internal, true},
		{"grpc invalid argument", invalid, false},
		{"http 503", &googleapi.Error{Code: 503}, true},
		{"http 429", &googleapi.Error{Code: 429}, true},
		{"http 403", &googleapi.Error{Code: 403}, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"blocked", ErrContentBlocked, false},
		{"empty", ErrEmptyResponse, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isTransient(tc.err))
		})
	}
}

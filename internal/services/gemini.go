package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"study-companion/internal/metrics"
	"study-companion/internal/models"
)

type GeminiConfig struct {
	APIKey             string
	Model              string
	Temperature        float64
	RequestsPerMinute  int
	ConcurrentRequests int
	MaxRetries         int
	// HistoryLimit caps how many prior Q&A entries are resent; 0 means all.
	HistoryLimit int
}

// textGenerator sends one request to the model and returns the reply text.
type textGenerator interface {
	GenerateText(ctx context.Context, req *AidRequest) (string, error)
}

type GeminiService struct {
	client       *genai.Client
	backend      textGenerator
	limiter      *rate.Limiter
	rateChan     chan struct{} // Concurrency slots
	maxRetries   int
	retryBase    time.Duration
	historyLimit int
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewGeminiService(ctx context.Context, cfg GeminiConfig, m *metrics.Metrics, logger zerolog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	backend := &genaiBackend{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}

	s := newGeminiService(backend, cfg, m, logger)
	s.client = client
	return s, nil
}

func newGeminiService(backend textGenerator, cfg GeminiConfig, m *metrics.Metrics, logger zerolog.Logger) *GeminiService {
	concurrent := max(cfg.ConcurrentRequests, 1)

	rateChan := make(chan struct{}, concurrent)
	for i := 0; i < concurrent; i++ {
		rateChan <- struct{}{}
	}

	limiter := rate.NewLimiter(rate.Inf, concurrent)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), concurrent)
	}

	return &GeminiService{
		backend:      backend,
		limiter:      limiter,
		rateChan:     rateChan,
		maxRetries:   max(cfg.MaxRetries, 0),
		retryBase:    500 * time.Millisecond,
		historyLimit: cfg.HistoryLimit,
		metrics:      m,
		logger:       logger.With().Str("component", "gemini").Logger(),
	}
}

func (s *GeminiService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Generate produces a fresh study aid of type t from img. For Q&A the result
// is a transcript holding the tutor's greeting.
func (s *GeminiService) Generate(ctx context.Context, img *models.Image, t models.AidType) (*models.Content, error) {
	req, err := BuildGenerateRequest(img, t)
	if err != nil {
		return nil, err
	}

	raw, err := s.call(ctx, req)
	if err != nil {
		return nil, err
	}

	content, err := Interpret(t, raw)
	if err != nil {
		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			s.metrics.MalformedReplies.WithLabelValues(t.Slug()).Inc()
			s.logger.Error().Err(err).Str("aid_type", string(t)).Str("raw", raw).
				Msg("Failed to process Gemini response")
		}
		return nil, err
	}

	return content, nil
}

// Ask answers a follow-up question. history is the transcript so far,
// without question.
func (s *GeminiService) Ask(ctx context.Context, img *models.Image, history []models.ChatMessage, question string) (string, error) {
	req, err := BuildFollowUpRequest(img, history, question, s.historyLimit)
	if err != nil {
		return "", err
	}

	s.logger.Debug().Int("history", len(history)).Int("resent_turns", len(req.History)).
		Msg("Sending Q&A follow-up")

	return s.call(ctx, req)
}

// acquireRate blocks until a concurrency slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *GeminiService) call(ctx context.Context, req *AidRequest) (string, error) {
	slug := req.AidType.Slug()

	if err := s.acquireRate(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer s.releaseRate()

	start := time.Now()
	var text string

	op := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		out, err := s.backend.GenerateText(ctx, req)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		text = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.metrics.GeminiRetries.Inc()
		s.logger.Warn().Err(err).Str("aid_type", string(req.AidType)).Dur("retry_in", wait).
			Msg("Transient Gemini failure, retrying")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryBase
	b.MaxInterval = 16 * s.retryBase
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxRetries)), ctx), notify)
	s.metrics.GeminiLatency.WithLabelValues(slug).Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.GeminiRequests.WithLabelValues(slug, "error").Inc()
		s.logger.Error().Err(err).Str("aid_type", string(req.AidType)).Msg("Gemini API error")
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}

	s.metrics.GeminiRequests.WithLabelValues(slug, "ok").Inc()
	return text, nil
}

// isTransient reports whether a failed call is worth retrying: rate limits,
// server errors and plain network failures.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrEmptyResponse) {
		return false
	}

	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if code := ae.HTTPCode(); code > 0 {
			return retryableHTTPStatus(code)
		}
		if st := ae.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
				return true
			}
		}
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return retryableHTTPStatus(gerr.Code)
	}

	return true
}

func retryableHTTPStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// genaiBackend is the production textGenerator.
type genaiBackend struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      zerolog.Logger
}

func (b *genaiBackend) GenerateText(ctx context.Context, req *AidRequest) (string, error) {
	model := b.client.GenerativeModel(b.model)
	model.SetTemperature(b.temperature)

	if req.Structured() {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = req.Schema
	}
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}

	var resp *genai.GenerateContentResponse
	var err error
	if len(req.History) > 0 {
		cs := model.StartChat()
		cs.History = req.History
		resp, err = cs.SendMessage(ctx, req.Parts...)
	} else {
		resp, err = model.GenerateContent(ctx, req.Parts...)
	}
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", fmt.Errorf("%w: %v", ErrContentBlocked, err)
		}
		return "", err
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			b.logger.Warn().Int("candidate", i).Str("finish_reason", cand.FinishReason.String()).
				Msg("Gemini stopped early")
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// extractText concatenates the text parts of the first candidate with content.
func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
		break
	}
	return text.String()
}

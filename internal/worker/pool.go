package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"study-companion/internal/metrics"
	"study-companion/internal/models"
	"study-companion/internal/services"
	"study-companion/internal/session"
)

var ErrQueueFull = errors.New("job queue is full")

// AidGenerator is the model-facing half of a job.
type AidGenerator interface {
	Generate(ctx context.Context, img *models.Image, t models.AidType) (*models.Content, error)
	Ask(ctx context.Context, img *models.Image, history []models.ChatMessage, question string) (string, error)
}

// Publisher delivers job events to a session's open connections.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage)
}

type Job struct {
	ID         uuid.UUID
	Type       models.JobType
	Session    *session.Session
	Generation *session.GenerationJob
	Reply      *session.ReplyJob
	CreatedAt  time.Time
}

func (j *Job) info() *models.JobInfo {
	info := &models.JobInfo{ID: j.ID, Type: j.Type, CreatedAt: j.CreatedAt}
	switch {
	case j.Generation != nil:
		info.AidType = j.Generation.AidType
	case j.Reply != nil:
		info.AidType = models.AidQnA
	}
	return info
}

type Pool struct {
	gemini      AidGenerator
	publisher   Publisher
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	queue       chan *Job
	workerCount int
	timeout     time.Duration
	wg          sync.WaitGroup
	stopChan    chan struct{}
	stopOnce    sync.Once
}

func NewPool(
	gemini AidGenerator,
	publisher Publisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
	workerCount int,
	queueSize int,
	timeout time.Duration,
) *Pool {
	return &Pool{
		gemini:      gemini,
		publisher:   publisher,
		metrics:     m,
		logger:      logger.With().Str("component", "worker").Logger(),
		queue:       make(chan *Job, max(queueSize, 1)),
		workerCount: max(workerCount, 1),
		timeout:     timeout,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info().Int("workers", p.workerCount).Int("queue_size", cap(p.queue)).Msg("Started worker goroutines")
}

// Stop signals the workers and waits for running jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// SubmitGeneration queues gen. The caller still owns the generation guard
// when ErrQueueFull is returned.
func (p *Pool) SubmitGeneration(sess *session.Session, gen *session.GenerationJob) (*models.JobInfo, error) {
	return p.submit(&Job{
		ID:         uuid.New(),
		Type:       models.JobAidGeneration,
		Session:    sess,
		Generation: gen,
		CreatedAt:  time.Now(),
	})
}

func (p *Pool) SubmitReply(sess *session.Session, reply *session.ReplyJob) (*models.JobInfo, error) {
	return p.submit(&Job{
		ID:        uuid.New(),
		Type:      models.JobQnAReply,
		Session:   sess,
		Reply:     reply,
		CreatedAt: time.Now(),
	})
}

func (p *Pool) submit(job *Job) (*models.JobInfo, error) {
	select {
	case p.queue <- job:
		p.metrics.QueueDepth.Set(float64(len(p.queue)))
		return job.info(), nil
	default:
		return nil, ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			p.logger.Debug().Int("worker", id).Msg("Worker shutting down")
			return
		case job := <-p.queue:
			p.metrics.QueueDepth.Set(float64(len(p.queue)))
			p.logger.Info().Int("worker", id).Str("job_id", job.ID.String()).Str("type", string(job.Type)).
				Str("session_id", job.Session.ID.String()).Msg("Processing job")
			p.process(context.Background(), job)
		}
	}
}

func (p *Pool) process(ctx context.Context, job *Job) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	switch job.Type {
	case models.JobAidGeneration:
		p.publishStatus(ctx, job, "Generating "+string(job.Generation.AidType))
		p.processGeneration(ctx, job)
	case models.JobQnAReply:
		p.publishStatus(ctx, job, "Composing reply")
		p.processReply(ctx, job)
	default:
		p.logger.Error().Str("type", string(job.Type)).Msg("Unknown job type")
	}
}

func (p *Pool) processGeneration(ctx context.Context, job *Job) {
	gen := job.Generation
	slug := gen.AidType.Slug()

	content, err := p.gemini.Generate(ctx, gen.Image, gen.AidType)
	if err != nil {
		message := failureMessage(err)
		if ferr := job.Session.FailGeneration(gen.Ticket, message); ferr != nil {
			p.discardStale(job, ferr)
			return
		}

		p.metrics.Generations.WithLabelValues(slug, "error").Inc()
		p.logger.Error().Err(err).Str("job_id", job.ID.String()).Str("aid_type", string(gen.AidType)).
			Msg("Generation failed")
		p.publishError(ctx, job, errorCode(err), message)
		return
	}

	if err := job.Session.CompleteGeneration(gen.Ticket, content); err != nil {
		p.discardStale(job, err)
		return
	}

	p.metrics.Generations.WithLabelValues(slug, "ok").Inc()
	p.logger.Info().Str("job_id", job.ID.String()).Str("aid_type", string(gen.AidType)).Msg("Job completed successfully")
	p.publishCompleted(ctx, job, gen.AidType)
}

func (p *Pool) processReply(ctx context.Context, job *Job) {
	reply := job.Reply

	text, err := p.gemini.Ask(ctx, reply.Image, reply.History, reply.Question)
	if err != nil {
		if ferr := job.Session.FailReply(reply.Ticket); ferr != nil {
			p.discardStale(job, ferr)
			return
		}

		p.metrics.Replies.WithLabelValues("error").Inc()
		p.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("Q&A reply failed")
		// The apology is already in the transcript; the client just redraws.
		p.publishCompleted(ctx, job, models.AidQnA)
		return
	}

	if err := job.Session.CompleteReply(reply.Ticket, text); err != nil {
		p.discardStale(job, err)
		return
	}

	p.metrics.Replies.WithLabelValues("ok").Inc()
	p.publishCompleted(ctx, job, models.AidQnA)
}

func (p *Pool) discardStale(job *Job, err error) {
	p.metrics.StaleResults.WithLabelValues(string(job.Type)).Inc()
	p.logger.Info().Err(err).Str("job_id", job.ID.String()).Str("session_id", job.Session.ID.String()).
		Msg("Discarding superseded result")
}

func (p *Pool) publishStatus(ctx context.Context, job *Job, step string) {
	p.publisher.Publish(ctx, job.Session.ID, models.WSMessage{
		Type: models.EventStatusUpdate,
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			JobType:  job.Type,
			Step:     1,
			StepName: step,
		},
	})
}

func (p *Pool) publishCompleted(ctx context.Context, job *Job, t models.AidType) {
	p.publisher.Publish(ctx, job.Session.ID, models.WSMessage{
		Type: models.EventCompleted,
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			JobType:    job.Type,
			ResultType: t,
		},
	})
}

func (p *Pool) publishError(ctx context.Context, job *Job, code, message string) {
	p.publisher.Publish(ctx, job.Session.ID, models.WSMessage{
		Type: models.EventError,
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			JobType:      job.Type,
			ErrorCode:    code,
			ErrorMessage: message,
		},
	})
}

// failureMessage is what the user sees for a failed generation: the most
// specific text for malformed replies, a generic one otherwise.
func failureMessage(err error) string {
	var malformed *services.MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed.UserMessage()
	}
	return session.GenerationFailedMessage
}

func errorCode(err error) string {
	var malformed *services.MalformedResponseError
	switch {
	case errors.As(err, &malformed):
		return "MALFORMED_RESPONSE"
	case errors.Is(err, services.ErrContentBlocked):
		return "CONTENT_BLOCKED"
	case errors.Is(err, services.ErrInvalidAidType):
		return "INVALID_AID_TYPE"
	case errors.Is(err, services.ErrImageRequired):
		return "NO_IMAGE"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	default:
		return "TRANSPORT_FAILURE"
	}
}

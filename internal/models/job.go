package models

import (
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobAidGeneration JobType = "aid-generation"
	JobQnAReply      JobType = "qna-reply"
)

// JobInfo is what the API returns when a job has been queued.
type JobInfo struct {
	ID        uuid.UUID `json:"id"`
	Type      JobType   `json:"type"`
	AidType   AidType   `json:"aid_type"`
	CreatedAt time.Time `json:"created_at"`
}

// WebSocket message types
const (
	EventStatusUpdate = "status_update"
	EventCompleted    = "completed"
	EventError        = "error"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	JobID    uuid.UUID `json:"job_id"`
	JobType  JobType   `json:"job_type"`
	Step     int       `json:"step"`
	StepName string    `json:"step_name"`
}

type CompletedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	JobType    JobType   `json:"job_type"`
	ResultType AidType   `json:"result_type"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	JobType      JobType   `json:"job_type"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

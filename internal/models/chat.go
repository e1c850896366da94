package models

type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage represents a single message in a Q&A transcript.
type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// ChatRequest is the payload sent to the follow-up question endpoint.
type ChatRequest struct {
	Question string `json:"question"`
}

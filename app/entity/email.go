package entity

import "time"

// Delivery lifecycle states. Sent and failed are terminal for the status
// record, but the queue may still retry a failed job within its budget.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusFailed     = "failed"
)

// HTTP-style status codes mirrored into status records.
const (
	CodeSent         = 201
	CodeAccepted     = 202
	CodeConflict     = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeFailed       = 503
)

type Email struct {
	ID             string `json:"id"`
	SenderEmail    string `json:"senderEmail"`
	SenderName     string `json:"senderName"`
	RecipientEmail string `json:"recipientEmail"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	Status         string `json:"status"`
}

// StatusRecord is the cache entry shared by the idempotency gate and the
// delivery pipeline, keyed by the idempotency key. RequestHash is written
// once at reservation time and never changes; later writes only touch
// Status, Message and StatusCode.
type StatusRecord struct {
	SenderEmail string    `json:"senderEmail"`
	Status      string    `json:"status"`
	RequestHash string    `json:"requestHash"`
	Message     string    `json:"message,omitempty"`
	StatusCode  int       `json:"statusCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Terminal reports whether the record has reached a final delivery state.
func (r *StatusRecord) Terminal() bool {
	return r.Status == StatusSent || r.Status == StatusFailed
}

// DeliveryRecord is one row of the optional delivery audit log.
type DeliveryRecord struct {
	JobID       string
	SenderEmail string
	Recipient   string
	Subject     string
	Status      string
	Message     string
}

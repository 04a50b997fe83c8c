package dto

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/relayq/relayq/app/entity"
)

var (
	ErrMissingFields    = errors.New("senderEmail, recipientEmail, subject, and body are required")
	ErrInvalidSender    = errors.New("senderEmail must be a valid email address")
	ErrInvalidRecipient = errors.New("recipientEmail must be a valid email address")
)

type SendEmailRequest struct {
	SenderEmail    string `json:"senderEmail"`
	SenderName     string `json:"senderName"`
	RecipientEmail string `json:"recipientEmail"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

// FromEchoContext binds and normalizes a request from Echo.
func FromEchoContext(ctx echo.Context) (SendEmailRequest, error) {
	var req SendEmailRequest
	if err := ctx.Bind(&req); err != nil {
		return SendEmailRequest{}, err
	}
	req.normalize()
	return req, nil
}

// Validate checks required fields and address formats.
func (r *SendEmailRequest) Validate() error {
	if r.SenderEmail == "" || r.RecipientEmail == "" || r.Subject == "" || r.Body == "" {
		return ErrMissingFields
	}
	if _, err := mail.ParseAddress(r.SenderEmail); err != nil {
		return ErrInvalidSender
	}
	if _, err := mail.ParseAddress(r.RecipientEmail); err != nil {
		return ErrInvalidRecipient
	}
	return nil
}

// ToEmail builds the immutable payload submitted to the pipeline.
func (r *SendEmailRequest) ToEmail(id string) entity.Email {
	return entity.Email{
		ID:             id,
		SenderEmail:    r.SenderEmail,
		SenderName:     r.SenderName,
		RecipientEmail: r.RecipientEmail,
		Subject:        r.Subject,
		Body:           r.Body,
		Status:         entity.StatusQueued,
	}
}

// normalize trims whitespace on the address and subject fields. The body
// is part of the content hash and is left untouched.
func (r *SendEmailRequest) normalize() {
	r.SenderEmail = strings.TrimSpace(r.SenderEmail)
	r.SenderName = strings.TrimSpace(r.SenderName)
	r.RecipientEmail = strings.TrimSpace(r.RecipientEmail)
	r.Subject = strings.TrimSpace(r.Subject)
}

package controller

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/relayq/relayq/app/auth"
	"github.com/relayq/relayq/app/dto"
	"github.com/relayq/relayq/app/entity"
	"github.com/relayq/relayq/app/idempotency"
	"github.com/relayq/relayq/app/service"
)

type EmailController struct {
	logger       *logrus.Logger
	emailService *service.EmailService
}

// NewEmailController constructs the HTTP email controller.
func NewEmailController(logger *logrus.Logger, emailService *service.EmailService) *EmailController {
	return &EmailController{logger: logger, emailService: emailService}
}

// SendEmail submits an email for asynchronous delivery. The idempotency
// gate has already reserved the key by the time this runs; duplicate and
// conflicting requests never reach here.
func (c *EmailController) SendEmail(ctx echo.Context) error {
	req, err := dto.FromEchoContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	key := idempotency.KeyFromEcho(ctx)
	if key == "" {
		c.logger.Error("submit reached without an idempotency key")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}

	email := req.ToEmail(uuid.NewString())
	record, err := c.emailService.Submit(ctx.Request().Context(), email, key)
	if err != nil {
		c.logger.WithField("key", key).WithError(err).Error("submit failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to submit email"})
	}

	// Echo the key back so clients with derived keys can poll the status.
	ctx.Response().Header().Set(idempotency.HeaderKey, key)
	return ctx.JSON(record.StatusCode, record)
}

// GetStatus returns the stored status record for an idempotency key.
func (c *EmailController) GetStatus(ctx echo.Context) error {
	key := ctx.Param("key")
	if key == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "key is required"})
	}

	record, err := c.emailService.GetStatus(ctx.Request().Context(), key)
	if errors.Is(err, service.ErrStatusNotFound) {
		return ctx.JSON(entity.CodeNotFound, map[string]string{"error": "status not found"})
	}
	if err != nil {
		c.logger.WithField("key", key).WithError(err).Error("status lookup failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}

	identity, _ := auth.FromContext(ctx)
	if identity.Email != record.SenderEmail {
		return ctx.JSON(entity.CodeUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	return ctx.JSON(http.StatusOK, record)
}

package response

import (
	"errors"
	"log"
	"strconv"

	"chamahub/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

// Response represents a standard API response
type Response struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
	Code      string            `json:"code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Success sends a success response
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created sends a 201 created response
func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// StatusFor maps an error kind to an HTTP status
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput:
		return fiber.StatusBadRequest
	case domain.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case domain.KindForbidden:
		return fiber.StatusForbidden
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindConflict:
		return fiber.StatusConflict
	case domain.KindRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// FromError writes the envelope for any error. Unclassified errors are logged
// with the request id and reported as a generic 500 unless showDetails is set.
func FromError(c *fiber.Ctx, err error, showDetails bool) error {
	if appErr, ok := domain.AsAppError(err); ok && appErr.Kind != domain.KindInternal {
		if appErr.RetryAfter > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(appErr.RetryAfter.Seconds()+0.999)))
		}
		return c.Status(StatusFor(appErr.Kind)).JSON(Response{
			Success: false,
			Message: appErr.Message,
			Code:    appErr.Code,
			Fields:  appErr.Fields,
		})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(Response{
			Success: false,
			Message: fe.Message,
		})
	}

	requestID := RequestID(c)
	log.Printf("❌ [%s] %s %s: %v", requestID, c.Method(), c.Path(), err)

	message := domain.ErrInternal.Message
	if showDetails {
		message = err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Success:   false,
		Message:   message,
		Code:      domain.ErrInternal.Code,
		RequestID: requestID,
	})
}

// RequestID returns the correlation id set by the requestid middleware
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return string(c.Response().Header.Peek(fiber.HeaderXRequestID))
}

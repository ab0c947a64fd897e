package handlerUtil

import (
	"errors"

	"FocusTracker/pkg/log"
	"FocusTracker/pkg/response"
	"FocusTracker/pkg/utils"

	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidImage    = "INVALID_IMAGE"
	CodeInternalError   = "INTERNAL_ERROR"

	missingFieldsMessage = "Missing required fields"
)

type ErrorResponse struct {
	Ok      bool   `json:"ok"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	status, body := h.Resolve(requestID, err, path, operation)
	return c.Status(status).JSON(body)
}

// Resolve maps err to the status and body sent to the client. It is shared
// by HTTP handlers and the websocket stream.
func (h *ErrorHandler) Resolve(requestID string, err error, path string, operation string) (int, ErrorResponse) {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}).Warn("Operation failed with error response")
		return respErr.Code, ErrorResponse{Error: respErr.Error(), Code: respErr.Key}
	}

	if errors.Is(err, utils.ErrEmptyImage) ||
		errors.Is(err, utils.ErrImageTooLarge) ||
		errors.Is(err, utils.ErrNotAnImage) ||
		errors.Is(err, utils.ErrInvalidEncoded) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Invalid image upload")
		return fiber.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidImage}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code < fiber.StatusInternalServerError {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Request rejected")
		return fiberErr.Code, ErrorResponse{Error: fiberErr.Message}
	}

	traceID := log.ErrorWithTraceID(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}, "Unexpected error")

	return fiber.StatusInternalServerError, ErrorResponse{
		Error:   "An unexpected error occurred",
		Code:    CodeInternalError,
		TraceID: traceID,
	}
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ValidationErrorResponse(err))
}

func ValidationErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Error:   missingFieldsMessage,
		Code:    CodeValidationError,
		Details: err.Error(),
	}
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: fiberUtils.StatusMessage(fiber.StatusRequestTimeout),
		Code:  "REQUEST_TIMEOUT",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}

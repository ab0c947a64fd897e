package focusHandler

import (
	"context"
	"errors"
	"time"

	"FocusTracker/internal/api/focus"
	contextPkg "FocusTracker/pkg/context"
	"FocusTracker/pkg/handlerUtil"
	"FocusTracker/pkg/log"

	"github.com/gofiber/fiber/v2"
)

const requestTimeout = 10 * time.Second

func (h *FocusHandler) ProcessImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.captureTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req focus.ProcessImageRequest

	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing multipart capture")

		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, focus.ErrInvalidBody, ctx.Path(), "parse_request_body")
		}

		req.Image, err = h.utils.ReadImageFile(file)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image_file")
		}
	} else {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
		}).Debug("Processing JSON capture")

		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, focus.ErrInvalidBody, ctx.Path(), "parse_request_body")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	// A returned capture is already stored; only a failed one reports the deadline.
	res, err := h.focusService.ProcessImage(c, req)
	if err != nil {
		if errors.Is(c.Err(), context.DeadlineExceeded) {
			return errHandler.HandleRequestTimeout(ctx)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_image")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *FocusHandler) sessionQuery(ctx *fiber.Ctx) focus.SessionQuery {
	return focus.SessionQuery{
		SessionID: ctx.Params("session_id"),
		UserID:    ctx.Query("user_id"),
		Limit:     ctx.QueryInt("limit", 0),
	}
}

func (h *FocusHandler) GetSessionEvents(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	q := h.sessionQuery(ctx)
	if err := h.validator.Struct(q); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	events, err := h.focusService.GetSessionEvents(c, q)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session_events")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"session_id": q.SessionID,
			"count":      len(events),
		}).Debug("Session events fetched")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, focus.SessionEventsResponse{
			Ok:     true,
			Events: events,
		})
	}
}

func (h *FocusHandler) GetSessionSummary(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	q := h.sessionQuery(ctx)
	q.Limit = 0
	if err := h.validator.Struct(q); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	summary, err := h.focusService.GetSessionSummary(c, q)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session_summary")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, focus.SessionSummaryResponse{
			Ok:      true,
			Summary: summary,
		})
	}
}

func (h *FocusHandler) GetLatest(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	q := h.sessionQuery(ctx)
	q.Limit = 0
	if err := h.validator.Struct(q); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	event, err := h.focusService.GetLatest(c, q)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_latest")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, focus.LatestEventResponse{
			Ok:    true,
			Event: event,
		})
	}
}

func (h *FocusHandler) GenerateAdvice(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req focus.AdviceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, focus.ErrInvalidBody, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.focusService.GenerateAdvice(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "generate_advice")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"session_id": req.SessionID,
			"source":     res.Source,
			"tips":       len(res.Tips),
		}).Info("Advice generated")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

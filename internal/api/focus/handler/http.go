package focusHandler

import (
	"time"

	focusService "FocusTracker/internal/api/focus/service"
	"FocusTracker/internal/middleware"
	"FocusTracker/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type FocusHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	focusService focusService.IFocusService
	utils        utils.IUtils
	// captureTimeout bounds a single image or websocket frame.
	captureTimeout time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	fs focusService.IFocusService,
	utils utils.IUtils,
) *FocusHandler {
	return &FocusHandler{
		focusService: fs,
		log:          log,
		validator:    validator,
		middleware:   middleware,
		utils:        utils,

		captureTimeout: requestTimeout,
	}
}

func (h *FocusHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	focus := srv.Group("/focus")
	focus.Use(h.middleware.NewRateLimiter)

	focus.Post("/image", h.ProcessImage)
	focus.Post("/advice", h.GenerateAdvice)

	sessions := focus.Group("/sessions/:session_id")
	sessions.Get("/events", h.GetSessionEvents)
	sessions.Get("/summary", h.GetSessionSummary)
	sessions.Get("/latest", h.GetLatest)

	focus.Use("/ws", wsMiddleware)
	focus.Get("/ws", websocket.New(h.handleWebSocket))
}

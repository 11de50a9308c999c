package poseHandler

import (
	"time"

	poseService "HeadTurner/internal/api/pose/service"
	"HeadTurner/internal/middleware"
	"HeadTurner/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type PoseHandler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	middleware  middleware.Middleware
	poseService poseService.IPoseService
	utils       utils.IUtils
	timeout     time.Duration
}

// New builds the handler. timeout bounds a whole generate request and should
// exceed the dispatcher's editor timeout.
func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ps poseService.IPoseService,
	utils utils.IUtils,
	timeout time.Duration,
) *PoseHandler {
	return &PoseHandler{
		poseService: ps,
		log:         log,
		validator:   validator,
		middleware:  middleware,
		utils:       utils,
		timeout:     timeout,
	}
}

func (h *PoseHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	pose := srv.Group("/pose")
	pose.Post("/generate", h.middleware.NewRateLimiter, h.Generate)
	pose.Post("/forget", h.Forget)
	pose.Get("/prompt", h.Prompt)
	pose.Get("/indicator", h.Indicator)
	pose.Get("/stats", h.Stats)

	pose.Use("/ws", wsMiddleware)
	pose.Get("/ws", websocket.New(h.handlePreviewWebSocket))
}

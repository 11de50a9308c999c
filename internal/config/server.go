package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	poseHandler "HeadTurner/internal/api/pose/handler"
	poseService "HeadTurner/internal/api/pose/service"
	"HeadTurner/internal/middleware"
	"HeadTurner/pkg/dispatcher"
	"HeadTurner/pkg/redis"
	"HeadTurner/pkg/s3"
	"HeadTurner/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// janitorInterval is how often expired entries are swept from the local tier.
const janitorInterval = time.Minute

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	editorConfig *EditorConfig
	editor       dispatcher.Editor
	closeEditor  func() error
	dispatcher   *dispatcher.Dispatcher
	redisServer  redis.IRedis
	s3Client     s3.ItfS3
	stopJanitor  context.CancelFunc
	mounted      bool
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log)
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware(opts ...middleware.Option) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, opts...)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithRedisServer adds the shared cache tier; a nil client is ignored.
func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

// WithS3Client enables result archiving when AWS_BUCKET_NAME is set.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithEditorConfig builds the provider adapter described by cfg.
func WithEditorConfig(ctx context.Context, cfg *EditorConfig) ServerOption {
	return func(s *Server) error {
		if cfg == nil {
			return fmt.Errorf("%w: editor config is required", ErrInvalidConfig)
		}

		editor, closeEditor, err := NewEditor(ctx, cfg)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create image editor: %v", err)
			}
			return err
		}

		s.editorConfig = cfg
		s.editor = editor
		s.closeEditor = closeEditor
		return nil
	}
}

// WithDispatcher puts the cache in front of the editor. It must follow
// WithEditorConfig, and WithRedisServer when a shared tier is wanted.
func WithDispatcher() ServerOption {
	return func(s *Server) error {
		if s.editor == nil || s.editorConfig == nil {
			return fmt.Errorf("editor must be initialized before dispatcher")
		}

		var store dispatcher.Store = dispatcher.NewMemoryStore(s.editorConfig.CacheCapacity)
		if s.redisServer != nil {
			store = dispatcher.NewTieredStore(store, s.redisServer)
		}

		opts := append(s.editorConfig.DispatcherOptions(), dispatcher.WithStore(store))
		if s.log != nil {
			opts = append(opts, dispatcher.WithLogger(s.log))
		}

		s.dispatcher = dispatcher.New(s.editor, opts...)
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Pose Domain
	poseServices := poseService.NewPoseService(s.log, s.dispatcher, s.s3Client, s.utils)
	poseHandlers := poseHandler.New(s.log, s.validator, s.middleware, poseServices, s.utils, s.requestTimeout())

	s.setupHealthCheck()
	s.handlers = append(s.handlers, poseHandlers)
}

func (s *Server) Run() error {
	s.mount()

	ctx, cancel := context.WithCancel(context.Background())
	s.stopJanitor = cancel
	go s.dispatcher.Janitor(ctx, janitorInterval)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops the listener and releases provider and cache connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}

	if s.stopJanitor != nil {
		s.stopJanitor()
	}

	if s.closeEditor != nil {
		if err := s.closeEditor(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close editor: %w", err))
		}
	}

	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) mount() {
	if s.mounted {
		return
	}
	s.mounted = true

	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}
}

// requestTimeout leaves the dispatcher room to report its own timeout.
func (s *Server) requestTimeout() time.Duration {
	timeout := dispatcher.DefaultTimeout
	if s.editorConfig != nil {
		timeout = s.editorConfig.Timeout
	}
	return timeout + 5*time.Second
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":  "Server is Healthy!",
			"provider": s.provider(),
		})
	})
}

func (s *Server) provider() string {
	if s.editorConfig == nil {
		return ""
	}
	return s.editorConfig.Provider
}

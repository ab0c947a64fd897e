package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"FocusTracker/database/postgres"
	focusHandler "FocusTracker/internal/api/focus/handler"
	focusRepository "FocusTracker/internal/api/focus/repository"
	focusService "FocusTracker/internal/api/focus/service"
	"FocusTracker/internal/middleware"
	"FocusTracker/pkg/awssession"
	"FocusTracker/pkg/gemini"
	"FocusTracker/pkg/redis"
	"FocusTracker/pkg/rekognition"
	"FocusTracker/pkg/s3"
	"FocusTracker/pkg/utils"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	awsSession   *session.Session
	rekognition  rekognition.IRekognition
	repository   focusRepository.Repository
	redisServer  redis.IRedis
	geminiClient gemini.IGemini
	s3Client     s3.ItfS3
	focusConfig  focusService.FocusConfig
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		focusConfig: focusService.DefaultConfig(),
	}

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
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.rekognition == nil {
		return nil, fmt.Errorf("face analyzer is required")
	}
	if server.repository == nil {
		return nil, fmt.Errorf("focus event store is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
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

func WithAWSSession() ServerOption {
	return func(s *Server) error {
		sess, err := awssession.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create AWS session: %v", err)
			}
			return fmt.Errorf("failed to create AWS session: %w", err)
		}
		s.awsSession = sess
		return nil
	}
}

func WithRekognition() ServerOption {
	return func(s *Server) error {
		if s.awsSession == nil {
			return fmt.Errorf("AWS session must be initialized before Rekognition")
		}
		s.rekognition = rekognition.New(s.awsSession)
		return nil
	}
}

// WithEventStore connects the backend named by FOCUS_STORE.
func WithEventStore() ServerOption {
	return func(s *Server) error {
		opts := focusRepository.Options{Store: focusStore()}

		switch opts.Store {
		case focusRepository.StorePostgres:
			db, err := postgres.New()
			if err != nil {
				if s.log != nil {
					s.log.Errorf("Failed to connect to database: %v", err)
				}
				return fmt.Errorf("failed to create database connection: %w", err)
			}
			s.db = db
			opts.DB = db
		case focusRepository.StoreDynamoDB:
			if s.awsSession == nil {
				return fmt.Errorf("AWS session must be initialized before DynamoDB")
			}
			opts.Dynamo = dynamodb.New(s.awsSession)
			opts.Table = eventsTable()
			opts.SessionIndex = eventsSessionIndex()
		}

		repo, err := focusRepository.New(opts, s.log)
		if err != nil {
			return fmt.Errorf("failed to create focus event store: %w", err)
		}
		s.repository = repo

		s.log.WithFields(logrus.Fields{
			"store":         opts.Store,
			"table":         opts.Table,
			"session_index": opts.SessionIndex,
		}).Info("Focus event store ready")
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware(cfg middleware.Config) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, cfg)
		return nil
	}
}

// WithS3Client is optional: without AWS_BUCKET_NAME frames are not archived.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		if s.awsSession == nil {
			return fmt.Errorf("AWS session must be initialized before S3")
		}
		client, err := s3.New(s.awsSession)
		if errors.Is(err, s3.ErrBucketNotConfigured) {
			s.log.Info("AWS_BUCKET_NAME not set, frame archive disabled")
			return nil
		}
		if err != nil {
			s.log.Errorf("Failed to initialize S3 client: %v", err)
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithGeminiClient is optional: without GEMINI_API_KEY advice is rule based.
func WithGeminiClient(ctx context.Context) ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient(ctx)
		if errors.Is(err, gemini.ErrNotConfigured) {
			s.log.Info("GEMINI_API_KEY not set, using rule-based advice")
			return nil
		}
		if err != nil {
			s.log.Errorf("Failed to create Gemini client: %v", err)
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func WithFocusConfig(cfg focusService.FocusConfig) ServerOption {
	return func(s *Server) error {
		s.focusConfig = cfg
		return nil
	}
}

// withFaceAnalyzer and withRepository let tests assemble a server without AWS.
func withFaceAnalyzer(analyzer rekognition.IRekognition) ServerOption {
	return func(s *Server) error {
		s.rekognition = analyzer
		return nil
	}
}

func withRepository(repo focusRepository.Repository) ServerOption {
	return func(s *Server) error {
		s.repository = repo
		return nil
	}
}

func (s *Server) RegisterHandler() {
	var opts []focusService.Option
	if s.s3Client != nil {
		opts = append(opts, focusService.WithFrameArchive(s.s3Client))
	}
	if s.redisServer != nil {
		opts = append(opts, focusService.WithCache(s.redisServer))
	}
	if s.geminiClient != nil {
		opts = append(opts, focusService.WithAdvisor(s.geminiClient))
	}

	// Focus Domain
	focusServices := focusService.NewFocusService(s.log, s.repository, s.rekognition, s.utils, s.focusConfig, opts...)
	focusHandlers := focusHandler.New(s.log, s.validator, s.middleware, focusServices, s.utils)

	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewCORSMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	s.setupHealthCheck()
	s.handlers = append(s.handlers, focusHandlers)

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	s.log.WithFields(logrus.Fields{
		"port":           port,
		"timestamp_mode": s.focusConfig.TimestampMode,
		"archive_frames": s.focusConfig.ArchiveFrames && s.s3Client != nil,
		"cache":          s.redisServer != nil,
		"advisor":        s.geminiClient != nil,
	}).Info("Starting focus tracker")

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops the HTTP server and releases every client opened at startup.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	if s.redisServer != nil {
		if cerr := s.redisServer.Close(); cerr != nil {
			s.log.Errorf("Error closing Redis: %v", cerr)
		}
	}
	if s.geminiClient != nil {
		if cerr := s.geminiClient.Close(); cerr != nil {
			s.log.Errorf("Error closing Gemini client: %v", cerr)
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil {
			s.log.Errorf("Error closing database: %v", cerr)
		}
	}

	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"ok":      true,
			"message": "Server is Healthy!",
		})
	})
}

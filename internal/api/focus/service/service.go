package focusService

import (
	"context"
	"time"

	"FocusTracker/internal/api/focus"
	focusRepository "FocusTracker/internal/api/focus/repository"
	"FocusTracker/internal/entity"
	"FocusTracker/pkg/gemini"
	"FocusTracker/pkg/redis"
	"FocusTracker/pkg/rekognition"
	"FocusTracker/pkg/s3"
	"FocusTracker/pkg/utils"

	"github.com/sirupsen/logrus"
)

const (
	TimestampModeClient = "client"
	TimestampModeServer = "server"
)

type IFocusService interface {
	ProcessImage(ctx context.Context, req focus.ProcessImageRequest) (*focus.ProcessImageResponse, error)
	GetSessionEvents(ctx context.Context, q focus.SessionQuery) ([]focus.EventResponse, error)
	GetSessionSummary(ctx context.Context, q focus.SessionQuery) (entity.SessionSummary, error)
	GetLatest(ctx context.Context, q focus.SessionQuery) (focus.EventResponse, error)
	GenerateAdvice(ctx context.Context, req focus.AdviceRequest) (*focus.AdviceResponse, error)
}

type FocusConfig struct {
	TimestampMode string
	ArchiveFrames bool
	CacheTTL      time.Duration
	HistoryLimit  int
}

func DefaultConfig() FocusConfig {
	return FocusConfig{
		TimestampMode: TimestampModeClient,
		CacheTTL:      30 * time.Minute,
		HistoryLimit:  500,
	}
}

type focusService struct {
	log      *logrus.Logger
	repo     focusRepository.Repository
	analyzer rekognition.IRekognition
	s3       s3.ItfS3
	cache    redis.IRedis
	gemini   gemini.IGemini
	utils    utils.IUtils
	config   FocusConfig
	now      func() time.Time
}

type Option func(*focusService)

// WithFrameArchive enables frame uploads when config.ArchiveFrames is set.
func WithFrameArchive(client s3.ItfS3) Option {
	return func(s *focusService) { s.s3 = client }
}

func WithCache(cache redis.IRedis) Option {
	return func(s *focusService) { s.cache = cache }
}

func WithAdvisor(client gemini.IGemini) Option {
	return func(s *focusService) { s.gemini = client }
}

func WithClock(now func() time.Time) Option {
	return func(s *focusService) { s.now = now }
}

func NewFocusService(
	log *logrus.Logger,
	repo focusRepository.Repository,
	analyzer rekognition.IRekognition,
	utils utils.IUtils,
	config FocusConfig,
	opts ...Option,
) IFocusService {
	s := &focusService{
		log:      log,
		repo:     repo,
		analyzer: analyzer,
		utils:    utils,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

package focusService

import (
	"context"
	"errors"
	"time"

	"FocusTracker/internal/api/focus"
	focusRepository "FocusTracker/internal/api/focus/repository"
	"FocusTracker/internal/entity"
	contextPkg "FocusTracker/pkg/context"
	scorer "FocusTracker/pkg/focus"
	"FocusTracker/pkg/redis"
	"FocusTracker/pkg/s3"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const noFaceNote = "no face"

func (s *focusService) ProcessImage(ctx context.Context, req focus.ProcessImageRequest) (*focus.ProcessImageResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	timestamp, err := s.resolveTimestamp(req)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": req.SessionID,
			"timestamp":  req.ClientTimestamp(),
		}).Warn("Rejected capture with invalid timestamp")
		return nil, err
	}

	image := req.Image
	if len(image) == 0 {
		image, err = s.utils.DecodeBase64Image(req.ImageBase64)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": req.SessionID,
				"error":      err.Error(),
			}).Warn("Failed to decode capture image")
			return nil, focus.ErrInvalidImage
		}
	}

	eventID, err := s.utils.NewULIDFromTimestamp(timestamp)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return nil, err
	}

	faces, frameKey, err := s.analyze(ctx, req, eventID, image)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": req.SessionID,
			"error":      err.Error(),
		}).Error("Face analysis failed")
		return nil, focus.ErrFaceAnalysisFailed
	}

	if len(faces) == 0 {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": req.SessionID,
		}).Info("No faces detected in image, skipping persistence")
		return &focus.ProcessImageResponse{
			Ok:         true,
			FocusScore: 0,
			Timestamp:  entity.FormatEventTime(timestamp),
			Note:       noFaceNote,
		}, nil
	}

	result := scorer.Score(faces[0])

	event := entity.FocusEvent{
		ID:         eventID,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Timestamp:  timestamp,
		Score:      result.Score,
		TopEmotion: result.TopEmotion,
		RawEmotion: result.RawEmotion,
		FrameKey:   frameKey,
		CreatedAt:  s.now().UTC(),
	}

	persisted := true
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		persisted = false
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": req.SessionID,
			"event_id":   eventID,
			"error":      err.Error(),
		}).Error("Failed to persist focus event, returning result anyway")
	}

	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, req.SessionID, event, s.config.CacheTTL); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": req.SessionID,
				"error":      err.Error(),
			}).Warn("Failed to cache latest focus event")
		}
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"session_id":  req.SessionID,
		"event_id":    eventID,
		"focus_score": result.Score,
		"emotion_top": result.TopEmotion,
		"emotion_raw": result.RawEmotion,
		"faces":       len(faces),
	}).Info("Focus image processed")

	return &focus.ProcessImageResponse{
		Ok:         true,
		FocusScore: result.Score,
		EmotionTop: result.TopEmotion,
		EmotionRaw: result.RawEmotion,
		Timestamp:  entity.FormatEventTime(timestamp),
		Feedback:   scorer.Feedback(result.Score),
		EventID:    eventID,
		FaceCount:  len(faces),
		Persisted:  persisted,
	}, nil
}

func (s *focusService) resolveTimestamp(req focus.ProcessImageRequest) (time.Time, error) {
	if s.config.TimestampMode == TimestampModeServer {
		return s.now().UTC(), nil
	}

	raw := req.ClientTimestamp()
	if raw == "" {
		return time.Time{}, focus.ErrMissingFields
	}

	ts, err := entity.ParseEventTime(raw)
	if err != nil {
		return time.Time{}, focus.ErrInvalidTimestamp
	}
	return ts, nil
}

// analyze runs face detection and, when enabled, the frame upload side by
// side. Upload failures never fail the request.
func (s *focusService) analyze(ctx context.Context, req focus.ProcessImageRequest, eventID string, image []byte) ([]entity.FaceAttributes, string, error) {
	var (
		faces    []entity.FaceAttributes
		frameKey string
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		faces, err = s.analyzer.DetectFaces(gctx, image)
		return err
	})

	if s.config.ArchiveFrames && s.s3 != nil {
		g.Go(func() error {
			key, err := s.s3.UploadFrame(gctx, s3.FrameKey(req.UserID, req.SessionID, eventID), image)
			if err != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": contextPkg.GetRequestID(ctx),
					"session_id": req.SessionID,
					"error":      err.Error(),
				}).Warn("Failed to archive frame")
				return nil
			}
			frameKey = key
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	return faces, frameKey, nil
}

// loadEvents reads the newest limit events of a session, oldest first.
// limit <= 0 reads up to the store cap.
func (s *focusService) loadEvents(ctx context.Context, q focus.SessionQuery, limit int) ([]entity.FocusEvent, error) {
	events, err := s.repo.GetEventsBySession(ctx, q.UserID, q.SessionID, limit)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": q.SessionID,
			"error":      err.Error(),
		}).Error("Failed to load session events")
		return nil, focus.ErrStoreUnavailable
	}
	return events, nil
}

func (s *focusService) GetSessionEvents(ctx context.Context, q focus.SessionQuery) ([]focus.EventResponse, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}

	events, err := s.loadEvents(ctx, q, limit)
	if err != nil {
		return nil, err
	}

	res := make([]focus.EventResponse, 0, len(events))
	for _, e := range events {
		res = append(res, s.toEventResponse(ctx, e))
	}
	return res, nil
}

// GetSessionSummary aggregates the whole session, not the history page.
func (s *focusService) GetSessionSummary(ctx context.Context, q focus.SessionQuery) (entity.SessionSummary, error) {
	events, err := s.loadEvents(ctx, q, 0)
	if err != nil {
		return entity.SessionSummary{}, err
	}
	return scorer.Summarize(q.UserID, q.SessionID, events), nil
}

func (s *focusService) GetLatest(ctx context.Context, q focus.SessionQuery) (focus.EventResponse, error) {
	if s.cache != nil {
		event, err := s.cache.GetLatest(ctx, q.SessionID)
		switch {
		case err == nil && event.UserID == q.UserID:
			return s.toEventResponse(ctx, event), nil
		case err != nil && !errors.Is(err, redis.ErrCacheMiss):
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"session_id": q.SessionID,
				"error":      err.Error(),
			}).Warn("Latest-event cache read failed, falling back to store")
		}
	}

	event, err := s.repo.GetLatestEvent(ctx, q.UserID, q.SessionID)
	if errors.Is(err, focusRepository.ErrEventNotFound) {
		return focus.EventResponse{}, focus.ErrSessionNotFound
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"session_id": q.SessionID,
			"error":      err.Error(),
		}).Error("Failed to load latest session event")
		return focus.EventResponse{}, focus.ErrStoreUnavailable
	}

	return s.toEventResponse(ctx, event), nil
}

func (s *focusService) toEventResponse(ctx context.Context, e entity.FocusEvent) focus.EventResponse {
	res := focus.NewEventResponse(e)
	if e.FrameKey == "" || s.s3 == nil {
		return res
	}

	url, err := s.s3.PresignURL(e.FrameKey)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"frame_key":  e.FrameKey,
			"error":      err.Error(),
		}).Warn("Failed to presign frame URL")
		return res
	}
	res.FrameURL = url
	return res
}

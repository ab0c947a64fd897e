package focusService

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"FocusTracker/internal/api/focus"
	focusRepository "FocusTracker/internal/api/focus/repository"
	"FocusTracker/internal/entity"
	scorer "FocusTracker/pkg/focus"
	"FocusTracker/pkg/redis"
	"FocusTracker/pkg/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu       sync.Mutex
	created  []entity.FocusEvent
	events   []entity.FocusEvent
	err      error
	getErr   error
	gotLimit int
}

func (f *fakeRepo) CreateEvent(_ context.Context, e entity.FocusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, e)
	return nil
}

// GetEventsBySession keeps the newest limit events, oldest first.
func (f *fakeRepo) GetEventsBySession(_ context.Context, _, _ string, limit int) ([]entity.FocusEvent, error) {
	f.gotLimit = limit
	if f.getErr != nil {
		return nil, f.getErr
	}
	events := f.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

func (f *fakeRepo) GetLatestEvent(_ context.Context, _, _ string) (entity.FocusEvent, error) {
	if f.getErr != nil {
		return entity.FocusEvent{}, f.getErr
	}
	if len(f.events) == 0 {
		return entity.FocusEvent{}, focusRepository.ErrEventNotFound
	}
	return f.events[len(f.events)-1], nil
}

type fakeAnalyzer struct {
	faces []entity.FaceAttributes
	err   error
	got   []byte
}

func (f *fakeAnalyzer) DetectFaces(_ context.Context, image []byte) ([]entity.FaceAttributes, error) {
	f.got = image
	return f.faces, f.err
}

type fakeS3 struct {
	key       string
	err       error
	presigned []string
}

func (f *fakeS3) UploadFrame(_ context.Context, key string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.key = key
	return key, nil
}

func (f *fakeS3) PresignURL(key string) (string, error) {
	f.presigned = append(f.presigned, key)
	return "https://frames.example/" + key, nil
}

type fakeCache struct {
	latest map[string]entity.FocusEvent
	setErr error
}

func (f *fakeCache) SetLatest(_ context.Context, sessionID string, e entity.FocusEvent, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.latest == nil {
		f.latest = map[string]entity.FocusEvent{}
	}
	f.latest[sessionID] = e
	return nil
}

func (f *fakeCache) GetLatest(_ context.Context, sessionID string) (entity.FocusEvent, error) {
	e, ok := f.latest[sessionID]
	if !ok {
		return entity.FocusEvent{}, redis.ErrCacheMiss
	}
	return e, nil
}

func (f *fakeCache) Close() error { return nil }

func boolPtr(b bool) *bool { return &b }

func attentiveFace() entity.FaceAttributes {
	return entity.FaceAttributes{
		EyesOpen: boolPtr(true),
		Pose:     &entity.Pose{},
		Emotions: []entity.Emotion{{Label: "HAPPY", Confidence: 95}, {Label: "CALM", Confidence: 3}},
	}
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, analyzer *fakeAnalyzer, cfg FocusConfig, opts ...Option) IFocusService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	opts = append(opts, WithClock(func() time.Time { return fixedNow }))
	return NewFocusService(log, repo, analyzer, utils.New(), cfg, opts...)
}

func validRequest() focus.ProcessImageRequest {
	return focus.ProcessImageRequest{
		SessionID:   "sess-1",
		UserID:      "test-user",
		ImageBase64: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff}),
		Timestamp:   "2025-03-01T10:00:00.250Z",
	}
}

func TestProcessImage_ScoresAndPersists(t *testing.T) {
	repo := &fakeRepo{}
	analyzer := &fakeAnalyzer{faces: []entity.FaceAttributes{attentiveFace()}}
	cache := &fakeCache{}
	svc := newTestService(repo, analyzer, DefaultConfig(), WithCache(cache))

	res, err := svc.ProcessImage(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, res.Ok)
	assert.InDelta(t, 91.0, res.FocusScore, 1e-9)
	assert.Equal(t, "HAPPY", res.EmotionTop)
	assert.Equal(t, "HAPPY", res.EmotionRaw)
	assert.Equal(t, scorer.FeedbackExcellent, res.Feedback)
	assert.Equal(t, "2025-03-01T10:00:00.250Z", res.Timestamp)
	assert.Equal(t, 1, res.FaceCount)
	assert.True(t, res.Persisted)
	assert.Empty(t, res.Note)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, analyzer.got)

	require.Len(t, repo.created, 1)
	event := repo.created[0]
	assert.Equal(t, res.EventID, event.ID)
	assert.Equal(t, "test-user", event.UserID)
	assert.Equal(t, "sess-1", event.SessionID)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 250000000, time.UTC), event.Timestamp)
	assert.Equal(t, fixedNow, event.CreatedAt)
	assert.Empty(t, event.FrameKey)

	assert.Equal(t, event, cache.latest["sess-1"])
}

func TestProcessImage_NoFace(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{}
	svc := newTestService(repo, &fakeAnalyzer{}, DefaultConfig(), WithCache(cache))

	res, err := svc.ProcessImage(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, res.Ok)
	assert.Zero(t, res.FocusScore)
	assert.Equal(t, "no face", res.Note)
	assert.Empty(t, res.EventID)
	assert.Empty(t, repo.created)
	assert.Empty(t, cache.latest)
}

func TestProcessImage_UsesFirstFace(t *testing.T) {
	repo := &fakeRepo{}
	sleepy := entity.FaceAttributes{EyesOpen: boolPtr(false), Pose: &entity.Pose{Yaw: 40, Pitch: 40}}
	analyzer := &fakeAnalyzer{faces: []entity.FaceAttributes{sleepy, attentiveFace()}}
	svc := newTestService(repo, analyzer, DefaultConfig())

	res, err := svc.ProcessImage(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, scorer.Score(sleepy).Score, res.FocusScore)
	assert.Equal(t, 2, res.FaceCount)
}

func TestProcessImage_PersistenceFailureIsNonFatal(t *testing.T) {
	repo := &fakeRepo{err: errors.New("table not found")}
	svc := newTestService(repo, &fakeAnalyzer{faces: []entity.FaceAttributes{attentiveFace()}}, DefaultConfig())

	res, err := svc.ProcessImage(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, res.Ok)
	assert.False(t, res.Persisted)
	assert.NotEmpty(t, res.EventID)
}

func TestProcessImage_CacheFailureIsNonFatal(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{setErr: errors.New("connection refused")}
	svc := newTestService(repo, &fakeAnalyzer{faces: []entity.FaceAttributes{attentiveFace()}}, DefaultConfig(), WithCache(cache))

	res, err := svc.ProcessImage(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, res.Persisted)
}

func TestProcessImage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*focus.ProcessImageRequest)
		analyzer *fakeAnalyzer
		wantErr  error
	}{
		{
			name:     "missing timestamp",
			mutate:   func(r *focus.ProcessImageRequest) { r.Timestamp = "" },
			analyzer: &fakeAnalyzer{},
			wantErr:  focus.ErrMissingFields,
		},
		{
			name:     "invalid timestamp",
			mutate:   func(r *focus.ProcessImageRequest) { r.Timestamp = "yesterday" },
			analyzer: &fakeAnalyzer{},
			wantErr:  focus.ErrInvalidTimestamp,
		},
		{
			name:     "invalid base64",
			mutate:   func(r *focus.ProcessImageRequest) { r.ImageBase64 = "%%%" },
			analyzer: &fakeAnalyzer{},
			wantErr:  focus.ErrInvalidImage,
		},
		{
			name:     "detection failure",
			mutate:   func(*focus.ProcessImageRequest) {},
			analyzer: &fakeAnalyzer{err: errors.New("InvalidImageFormatException")},
			wantErr:  focus.ErrFaceAnalysisFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			svc := newTestService(repo, tt.analyzer, DefaultConfig())

			req := validRequest()
			tt.mutate(&req)

			res, err := svc.ProcessImage(context.Background(), req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, repo.created)
		})
	}
}

func TestProcessImage_LegacyTsField(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeAnalyzer{faces: []entity.FaceAttributes{attentiveFace()}}, DefaultConfig())

	req := validRequest()
	req.Timestamp = ""
	req.Ts = "2025-03-01T11:00:00+01:00"

	res, err := svc.ProcessImage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T10:00:00.000Z", res.Timestamp)
}

func TestProcessImage_ServerTimestampMode(t *testing.T) {
	repo := &fakeRepo{}
	cfg := DefaultConfig()
	cfg.TimestampMode = TimestampModeServer
	svc := newTestService(repo, &fakeAnalyzer{faces: []entity.FaceAttributes{attentiveFace()}}, cfg)

	req := validRequest()
	req.Timestamp = ""

	res, err := svc.ProcessImage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, entity.FormatEventTime(fixedNow), res.Timestamp)
	require.Len(t, repo.created, 1)
	assert.Equal(t, fixedNow, repo.created[0].Timestamp)
}

func TestProcessImage_PreDecodedImage(t *testing.T) {
	analyzer := &fakeAnalyzer{faces: []entity.FaceAttributes{attentiveFace()}}
	svc := newTestService(&fakeRepo{}, analyzer, DefaultConfig())

	req := validRequest()
	req.ImageBase64 = ""
	req.Image = []byte("jpeg-bytes")

	_, err := svc.ProcessImage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), analyzer.got)
}

func TestProcessImage_ArchivesFrame(t *testing.T) {
	repo := &fakeRepo{}
	store := &fakeS3{}
	cfg := DefaultConfig()
	cfg.ArchiveFrames = true
	svc := newTestService(repo, &fakeAnalyzer{faces: []entity.FaceAttributes{attentiveFace()}}, cfg, WithFrameArchive(store))

	res, err := svc.ProcessImage(context.Background(), validRequest())
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Equal(t, "frames/test-user/sess-1/"+res.EventID+".jpg", repo.created[0].FrameKey)
	assert.Equal(t, store.key, repo.created[0].FrameKey)
}

func TestProcessImage_ArchiveFailureIsNonFatal(t *testing.T) {
	repo := &fakeRepo{}
	cfg := DefaultConfig()
	cfg.ArchiveFrames = true
	svc := newTestService(repo, &fakeAnalyzer{faces: []entity.FaceAttributes{attentiveFace()}}, cfg,
		WithFrameArchive(&fakeS3{err: errors.New("AccessDenied")}))

	res, err := svc.ProcessImage(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	require.Len(t, repo.created, 1)
	assert.Empty(t, repo.created[0].FrameKey)
}

func sessionEvents() []entity.FocusEvent {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []entity.FocusEvent{
		{ID: "e1", UserID: "u1", SessionID: "s1", Timestamp: at, Score: 91, TopEmotion: "HAPPY", RawEmotion: "HAPPY"},
		{ID: "e2", UserID: "u1", SessionID: "s1", Timestamp: at.Add(5 * time.Second), Score: 46, TopEmotion: "STRESSED", RawEmotion: "SAD", FrameKey: "frames/u1/s1/e2.jpg"},
	}
}

func TestGetSessionEvents(t *testing.T) {
	repo := &fakeRepo{events: sessionEvents()}
	store := &fakeS3{}
	svc := newTestService(repo, &fakeAnalyzer{}, DefaultConfig(), WithFrameArchive(store))

	events, err := svc.GetSessionEvents(context.Background(), focus.SessionQuery{UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, 500, repo.gotLimit)
	assert.Equal(t, "2025-03-01T10:00:00.000Z", events[0].Timestamp)
	assert.Empty(t, events[0].FrameURL)
	assert.Equal(t, "https://frames.example/frames/u1/s1/e2.jpg", events[1].FrameURL)
	assert.Equal(t, []string{"frames/u1/s1/e2.jpg"}, store.presigned)
}

func TestGetSessionEvents_StoreError(t *testing.T) {
	repo := &fakeRepo{getErr: errors.New("timeout")}
	svc := newTestService(repo, &fakeAnalyzer{}, DefaultConfig())

	_, err := svc.GetSessionEvents(context.Background(), focus.SessionQuery{UserID: "u1", SessionID: "s1", Limit: 10})
	assert.ErrorIs(t, err, focus.ErrStoreUnavailable)
	assert.Equal(t, 10, repo.gotLimit)
}

func TestGetSessionSummary(t *testing.T) {
	svc := newTestService(&fakeRepo{events: sessionEvents()}, &fakeAnalyzer{}, DefaultConfig())

	summary, err := svc.GetSessionSummary(context.Background(), focus.SessionQuery{UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Samples)
	assert.Equal(t, 69, summary.AverageScore)
	assert.Equal(t, scorer.PerformanceFair, summary.Performance)
	assert.Equal(t, "STRESSED", summary.CurrentEmotion)
}

func TestGetLatest(t *testing.T) {
	t.Run("cache hit", func(t *testing.T) {
		cached := sessionEvents()[0]
		cache := &fakeCache{latest: map[string]entity.FocusEvent{"s1": cached}}
		repo := &fakeRepo{getErr: errors.New("must not be called")}
		svc := newTestService(repo, &fakeAnalyzer{}, DefaultConfig(), WithCache(cache))

		res, err := svc.GetLatest(context.Background(), focus.SessionQuery{UserID: "u1", SessionID: "s1"})
		require.NoError(t, err)
		assert.Equal(t, "e1", res.ID)
	})

	t.Run("cached event of another user falls back to store", func(t *testing.T) {
		cached := sessionEvents()[0]
		cached.UserID = "someone-else"
		cache := &fakeCache{latest: map[string]entity.FocusEvent{"s1": cached}}
		svc := newTestService(&fakeRepo{events: sessionEvents()}, &fakeAnalyzer{}, DefaultConfig(), WithCache(cache))

		res, err := svc.GetLatest(context.Background(), focus.SessionQuery{UserID: "u1", SessionID: "s1"})
		require.NoError(t, err)
		assert.Equal(t, "e2", res.ID)
	})

	t.Run("cache miss", func(t *testing.T) {
		svc := newTestService(&fakeRepo{events: sessionEvents()}, &fakeAnalyzer{}, DefaultConfig(), WithCache(&fakeCache{}))

		res, err := svc.GetLatest(context.Background(), focus.SessionQuery{UserID: "u1", SessionID: "s1"})
		require.NoError(t, err)
		assert.Equal(t, "e2", res.ID)
	})

	t.Run("empty session", func(t *testing.T) {
		svc := newTestService(&fakeRepo{}, &fakeAnalyzer{}, DefaultConfig())

		_, err := svc.GetLatest(context.Background(), focus.SessionQuery{UserID: "u1", SessionID: "s1"})
		assert.ErrorIs(t, err, focus.ErrSessionNotFound)
	})

	t.Run("store error", func(t *testing.T) {
		svc := newTestService(&fakeRepo{getErr: errors.New("timeout")}, &fakeAnalyzer{}, DefaultConfig())

		_, err := svc.GetLatest(context.Background(), focus.SessionQuery{UserID: "u1", SessionID: "s1"})
		assert.ErrorIs(t, err, focus.ErrStoreUnavailable)
	})
}

func longSession(n int) []entity.FocusEvent {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	events := make([]entity.FocusEvent, n)
	for i := range events {
		events[i] = entity.FocusEvent{
			ID:         fmt.Sprintf("e%d", i),
			UserID:     "u1",
			SessionID:  "s1",
			Timestamp:  at.Add(time.Duration(i) * 3 * time.Second),
			Score:      80,
			TopEmotion: "CALM",
			RawEmotion: "CALM",
		}
	}
	events[n-1].TopEmotion = "STRESSED"
	return events
}

func TestSessionReads_BeyondHistoryLimit(t *testing.T) {
	events := longSession(600)
	last := events[len(events)-1]
	repo := &fakeRepo{events: events}
	svc := newTestService(repo, &fakeAnalyzer{}, DefaultConfig())
	q := focus.SessionQuery{UserID: "u1", SessionID: "s1"}

	latest, err := svc.GetLatest(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "e599", latest.ID)

	summary, err := svc.GetSessionSummary(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.gotLimit)
	assert.Equal(t, 600, summary.Samples)
	require.NotNil(t, summary.EndedAt)
	assert.Equal(t, last.Timestamp, *summary.EndedAt)
	assert.Equal(t, "STRESSED", summary.CurrentEmotion)

	history, err := svc.GetSessionEvents(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, history, 500)
	assert.Equal(t, "e100", history[0].ID)
	assert.Equal(t, "e599", history[len(history)-1].ID)
}

package focusRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"FocusTracker/internal/entity"
	contextPkg "FocusTracker/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// maxSessionEvents bounds unlimited history reads.
const maxSessionEvents = 5000

type FocusEventDB struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	SessionID  string         `db:"session_id"`
	EventTime  time.Time      `db:"event_time"`
	FocusScore float64        `db:"focus_score"`
	EmotionTop string         `db:"emotion_top"`
	EmotionRaw string         `db:"emotion_raw"`
	FrameKey   sql.NullString `db:"frame_key"`
	CreatedAt  time.Time      `db:"created_at"`
}

type postgresRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}

func NewPostgres(db *sqlx.DB, log *logrus.Logger) Repository {
	return &postgresRepository{q: db, log: log}
}

func (r *postgresRepository) CreateEvent(ctx context.Context, event entity.FocusEvent) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":          event.ID,
		"user_id":     event.UserID,
		"session_id":  event.SessionID,
		"event_time":  event.Timestamp.UTC(),
		"focus_score": event.Score,
		"emotion_top": event.TopEmotion,
		"emotion_raw": event.RawEmotion,
		"frame_key":   sql.NullString{String: event.FrameKey, Valid: event.FrameKey != ""},
		"created_at":  event.CreatedAt.UTC(),
	}

	query, args, err := sqlx.Named(queryCreateEvent, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateEvent")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": event.SessionID,
			"error":      err.Error(),
		}).Error("Database error when creating focus event")
		return err
	}

	return nil
}

func (r *postgresRepository) GetEventsBySession(ctx context.Context, userID, sessionID string, limit int) ([]entity.FocusEvent, error) {
	requestID := contextPkg.GetRequestID(ctx)
	if limit <= 0 || limit > maxSessionEvents {
		limit = maxSessionEvents
	}

	argsKV := map[string]interface{}{
		"user_id":    userID,
		"session_id": sessionID,
		"limit":      limit,
	}

	query, args, err := sqlx.Named(queryGetEventsBySession, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetEventsBySession named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	var rows []FocusEventDB
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("GetEventsBySession execution err")
		return nil, err
	}

	events := make([]entity.FocusEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, r.makeFocusEvent(row))
	}

	return events, nil
}

func (r *postgresRepository) GetLatestEvent(ctx context.Context, userID, sessionID string) (entity.FocusEvent, error) {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"user_id":    userID,
		"session_id": sessionID,
	}

	query, args, err := sqlx.Named(queryGetLatestEvent, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetLatestEvent named query preparation err")
		return entity.FocusEvent{}, err
	}
	query = r.q.Rebind(query)

	var row FocusEventDB
	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.FocusEvent{}, ErrEventNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("GetLatestEvent execution err")
		return entity.FocusEvent{}, err
	}

	return r.makeFocusEvent(row), nil
}

func (r *postgresRepository) makeFocusEvent(row FocusEventDB) entity.FocusEvent {
	return entity.FocusEvent{
		ID:         row.ID,
		UserID:     row.UserID,
		SessionID:  row.SessionID,
		Timestamp:  row.EventTime.UTC(),
		Score:      row.FocusScore,
		TopEmotion: row.EmotionTop,
		RawEmotion: row.EmotionRaw,
		FrameKey:   row.FrameKey.String,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

package focusRepository

import (
	"context"
	"time"

	"FocusTracker/internal/entity"
	contextPkg "FocusTracker/pkg/context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/sirupsen/logrus"
)

type DynamoAPI = dynamodbiface.DynamoDBAPI

// focusEventItem keeps the attribute names of the existing FocusEvents table:
// partition key user_id, sort key timestamp.
type focusEventItem struct {
	UserID     string  `dynamodbav:"user_id"`
	Timestamp  string  `dynamodbav:"timestamp"`
	SessionID  string  `dynamodbav:"sessionId"`
	FocusScore float64 `dynamodbav:"focusScore"`
	EmotionTop string  `dynamodbav:"emotionTop"`
	EmotionRaw string  `dynamodbav:"emotionRaw"`
	EventID    string  `dynamodbav:"eventId"`
	FrameKey   string  `dynamodbav:"frameKey,omitempty"`
	CreatedAt  string  `dynamodbav:"createdAt"`
}

type dynamoRepository struct {
	db           DynamoAPI
	table        string
	sessionIndex string
	log          *logrus.Logger
}

// NewDynamo reads session history from sessionIndex when it is set. Without
// the index a read pages through the whole user_id partition and filters on
// sessionId, so every past session of the user is charged to the read.
func NewDynamo(db DynamoAPI, table, sessionIndex string, log *logrus.Logger) Repository {
	return &dynamoRepository{db: db, table: table, sessionIndex: sessionIndex, log: log}
}

func (r *dynamoRepository) CreateEvent(ctx context.Context, event entity.FocusEvent) error {
	requestID := contextPkg.GetRequestID(ctx)

	item, err := dynamodbattribute.MarshalMap(focusEventItem{
		UserID:     event.UserID,
		Timestamp:  entity.FormatEventTime(event.Timestamp),
		SessionID:  event.SessionID,
		FocusScore: event.Score,
		EmotionTop: event.TopEmotion,
		EmotionRaw: event.RawEmotion,
		EventID:    event.ID,
		FrameKey:   event.FrameKey,
		CreatedAt:  event.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to marshal focus event item")
		return err
	}

	r.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"table":      r.table,
		"session_id": event.SessionID,
		"event_id":   event.ID,
	}).Debug("Putting focus event to DynamoDB")

	if _, err := r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	}); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": event.SessionID,
			"error":      err.Error(),
		}).Error("DynamoDB write error")
		return err
	}

	return nil
}

func (r *dynamoRepository) GetEventsBySession(ctx context.Context, userID, sessionID string, limit int) ([]entity.FocusEvent, error) {
	if limit <= 0 || limit > maxSessionEvents {
		limit = maxSessionEvents
	}

	events, err := r.queryNewest(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func (r *dynamoRepository) GetLatestEvent(ctx context.Context, userID, sessionID string) (entity.FocusEvent, error) {
	events, err := r.queryNewest(ctx, userID, sessionID, 1)
	if err != nil {
		return entity.FocusEvent{}, err
	}
	if len(events) == 0 {
		return entity.FocusEvent{}, ErrEventNotFound
	}
	return events[0], nil
}

// queryNewest pages backwards through the session, newest first, until limit
// events matched or the key range is exhausted.
func (r *dynamoRepository) queryNewest(ctx context.Context, userID, sessionID string, limit int) ([]entity.FocusEvent, error) {
	requestID := contextPkg.GetRequestID(ctx)
	input := r.sessionQuery(userID, sessionID)

	events := make([]entity.FocusEvent, 0)
	for {
		out, err := r.db.QueryWithContext(ctx, input)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"error":      err.Error(),
			}).Error("DynamoDB query error")
			return nil, err
		}

		var items []focusEventItem
		if err := dynamodbattribute.UnmarshalListOfMaps(out.Items, &items); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Failed to unmarshal focus event items")
			return nil, err
		}

		for _, item := range items {
			events = append(events, r.makeFocusEvent(item))
			if len(events) >= limit {
				return events, nil
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			return events, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *dynamoRepository) sessionQuery(userID, sessionID string) *dynamodb.QueryInput {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("sessionId = :sid"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":uid": {S: aws.String(userID)},
			":sid": {S: aws.String(sessionID)},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if r.sessionIndex != "" {
		input.IndexName = aws.String(r.sessionIndex)
		input.KeyConditionExpression = aws.String("sessionId = :sid")
		input.FilterExpression = aws.String("user_id = :uid")
	}
	return input
}

func (r *dynamoRepository) makeFocusEvent(item focusEventItem) entity.FocusEvent {
	ts, err := entity.ParseEventTime(item.Timestamp)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"event_id":  item.EventID,
			"timestamp": item.Timestamp,
		}).Warn("Stored focus event has an unparseable timestamp")
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)

	return entity.FocusEvent{
		ID:         item.EventID,
		UserID:     item.UserID,
		SessionID:  item.SessionID,
		Timestamp:  ts,
		Score:      item.FocusScore,
		TopEmotion: item.EmotionTop,
		RawEmotion: item.EmotionRaw,
		FrameKey:   item.FrameKey,
		CreatedAt:  createdAt.UTC(),
	}
}

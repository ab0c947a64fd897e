package focusRepository

import (
	"context"
	"errors"
	"fmt"

	"FocusTracker/internal/entity"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const (
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
)

var ErrEventNotFound = errors.New("focus event not found")

// Repository is the durable focus event store.
type Repository interface {
	CreateEvent(ctx context.Context, event entity.FocusEvent) error
	// GetEventsBySession returns the newest limit events of a session in
	// chronological order. limit <= 0 reads up to maxSessionEvents.
	GetEventsBySession(ctx context.Context, userID, sessionID string, limit int) ([]entity.FocusEvent, error)
	// GetLatestEvent returns ErrEventNotFound for a session without events.
	GetLatestEvent(ctx context.Context, userID, sessionID string) (entity.FocusEvent, error)
}

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

type Options struct {
	Store  string
	DB     *sqlx.DB
	Dynamo DynamoAPI
	Table  string
	// SessionIndex names an optional GSI keyed sessionId + timestamp.
	SessionIndex string
}

// New picks the backend named by opts.Store.
func New(opts Options, log *logrus.Logger) (Repository, error) {
	switch opts.Store {
	case StorePostgres:
		if opts.DB == nil {
			return nil, fmt.Errorf("postgres store requires a database connection")
		}
		return NewPostgres(opts.DB, log), nil
	case StoreDynamoDB, "":
		if opts.Dynamo == nil {
			return nil, fmt.Errorf("dynamodb store requires a client")
		}
		if opts.Table == "" {
			return nil, fmt.Errorf("dynamodb store requires a table name")
		}
		return NewDynamo(opts.Dynamo, opts.Table, opts.SessionIndex, log), nil
	default:
		return nil, fmt.Errorf("unknown focus store %q", opts.Store)
	}
}

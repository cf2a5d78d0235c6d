package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// IsEventProcessed checks if a delivery has been processed by this service
func (s *Store) IsEventProcessed(ctx context.Context, deliveryID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE delivery_id = $1)", deliveryID)
	return exists, err
}

// MarkEventProcessed marks a delivery as processed
func (s *Store) MarkEventProcessed(ctx context.Context, deliveryID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (delivery_id, event_type) VALUES ($1, $2) ON CONFLICT (delivery_id) DO NOTHING",
		deliveryID, eventType)
	return err
}

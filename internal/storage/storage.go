// Package storage persists ledger snapshots. Every backend stores the whole
// snapshot per user and the last save wins.
package storage

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrUserNotFound is returned by Load for a user with no stored snapshot.
var ErrUserNotFound = errors.New("user not found")

// Repository is the persistence port used by the services.
type Repository interface {
	Load(ctx context.Context, userID string) (*core.Snapshot, error)
	Save(ctx context.Context, userID string, s *core.Snapshot) error
	Users(ctx context.Context) ([]string, error)
}

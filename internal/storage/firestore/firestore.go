// Package firestore stores snapshots in Cloud Firestore using the document
// layout of the browser app: users/{uid}/data/{key}, each with an items
// field.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const usersCollection = "users"

// Repository implements storage.Repository on Firestore.
type Repository struct {
	client *firestore.Client
}

// New connects to the project. FIRESTORE_EMULATOR_HOST is honoured by the
// client library.
func New(ctx context.Context, projectID string) (*Repository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Repository{client: client}, nil
}

func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) userDoc(userID string) *firestore.DocumentRef {
	return r.client.Collection(usersCollection).Doc(userID)
}

func (r *Repository) Load(ctx context.Context, userID string) (*core.Snapshot, error) {
	if _, err := r.userDoc(userID).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	refs := make([]*firestore.DocumentRef, len(dataKeys))
	for i, key := range dataKeys {
		refs[i] = r.userDoc(userID).Collection("data").Doc(key)
	}
	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("get data documents: %w", err)
	}

	var d decoded
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		if err := doc.DataTo(d.target(doc.Ref.ID)); err != nil {
			return nil, fmt.Errorf("decode %s: %w", doc.Ref.ID, err)
		}
	}
	return d.snapshot()
}

// Save writes the user document and every data document in one
// transaction.
func (r *Repository) Save(ctx context.Context, userID string, s *core.Snapshot) error {
	docs := encode(s)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(r.userDoc(userID), map[string]any{"updatedAt": time.Now().UTC()}, firestore.MergeAll); err != nil {
			return err
		}
		for _, key := range dataKeys {
			if err := tx.Set(r.userDoc(userID).Collection("data").Doc(key), docs[key]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", userID, err)
	}

	slog.InfoContext(ctx, "Snapshot saved to Firestore",
		"user_id", userID,
		"transactions", len(s.Transactions))
	return nil
}

func (r *Repository) Users(ctx context.Context) ([]string, error) {
	iter := r.client.Collection(usersCollection).DocumentRefs(ctx)
	var ids []string
	for {
		ref, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

var _ storage.Repository = (*Repository)(nil)

package store

import (
	"context"
	"fmt"
	"time"

	"astra/internal/logging"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps session records in the user_sessions collection,
// one document per user. Fields hold the same encoded values as the
// SQLite columns.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a Firestore store for projectID.
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	logging.Store("Firestore store ready for project %s", projectID)
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) sessionDoc(userID string) *firestore.DocumentRef {
	return s.client.Collection("user_sessions").Doc(userID)
}

// LoadSession reads the document of userID.
func (s *FirestoreStore) LoadSession(ctx context.Context, userID string) (*Record, error) {
	snap, err := s.sessionDoc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("firestore LoadSession: %w", err)
	}
	return recordFromFields(snap.Data()), nil
}

// recordFromFields decodes a document's field map.
func recordFromFields(fields map[string]interface{}) *Record {
	rec := &Record{}
	for name, raw := range fields {
		switch v := raw.(type) {
		case string:
			if err := rec.setColumn(name, v); err != nil {
				logging.StoreWarn("Skipping corrupt firestore field: %v", err)
			}
		case time.Time:
			if name == ColUpdatedAt {
				rec.UpdatedAt = v
			}
		}
	}
	return rec
}

// patchFields encodes the set fields of p as a document update.
func patchFields(userID string, p Patch, now time.Time) (map[string]interface{}, error) {
	cols, err := p.columns()
	if err != nil {
		return nil, err
	}
	doc := map[string]interface{}{
		"user_id":    userID,
		ColUpdatedAt: now,
	}
	for _, c := range cols {
		doc[c.name] = c.value
	}
	return doc, nil
}

// UpsertSession merges the set fields of p into the user's document.
func (s *FirestoreStore) UpsertSession(ctx context.Context, userID string, p Patch) error {
	doc, err := patchFields(userID, p, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := s.sessionDoc(userID).Set(ctx, doc, firestore.MergeAll); err != nil {
		return fmt.Errorf("firestore UpsertSession: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

package db

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go-firstresponder/types"
)

const reportsCollection = "reports"

// InitFirestore creates a Firestore client from base64 encoded service
// account credentials through a Firebase app.
func InitFirestore(ctx context.Context, encodedCreds string) (*firestore.Client, error) {
	creds, err := base64.StdEncoding.DecodeString(encodedCreds)
	if err != nil {
		return nil, fmt.Errorf("failed to decode firestore credentials: %w", err)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}
	return client, nil
}

// FirestoreStore keeps reports in a single collection keyed by report id.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) reports() *firestore.CollectionRef {
	return s.client.Collection(reportsCollection)
}

func (s *FirestoreStore) Create(ctx context.Context, r *types.EmergencyReport) error {
	prepareStarter(r)
	if _, err := s.reports().Doc(r.ID).Create(ctx, r); err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// CreateFollowUp reads the starter and its follow-ups inside a transaction,
// so concurrent follow-ups retry instead of sharing a step.
func (s *FirestoreStore) CreateFollowUp(ctx context.Context, parentID string, r *types.EmergencyReport) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		parent, err := s.getInTx(tx, parentID)
		if err != nil {
			return err
		}
		starterID := starterOf(parent)
		if starterID != parent.ID {
			if _, err := s.getInTx(tx, starterID); err != nil {
				return err
			}
		}

		docs, err := tx.Documents(s.reports().Where("parentId", "==", starterID)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to count follow-ups: %w", err)
		}

		prepareFollowUp(r, starterID, len(docs)+2)
		if err := tx.Create(s.reports().Doc(r.ID), r); err != nil {
			return fmt.Errorf("failed to create follow-up report: %w", err)
		}
		return nil
	})
}

func (s *FirestoreStore) getInTx(tx *firestore.Transaction, id string) (*types.EmergencyReport, error) {
	doc, err := tx.Get(s.reports().Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting report %s: %w", id, err)
	}
	return decodeReport(doc)
}

func (s *FirestoreStore) Update(ctx context.Context, r *types.EmergencyReport) error {
	ref := s.reports().Doc(r.ID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("update %s: %w", r.ID, ErrNotFound)
			}
			return err
		}
		return tx.Set(ref, r)
	})
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", r.ID, err)
	}
	return nil
}

func (s *FirestoreStore) Revise(ctx context.Context, id string, rev StarterRevision) error {
	var updates []firestore.Update
	if rev.Severity.Valid() {
		updates = append(updates, firestore.Update{Path: "severity", Value: rev.Severity})
	}
	if rev.Category != "" {
		updates = append(updates, firestore.Update{Path: "category", Value: rev.Category})
	}
	if rev.Complete {
		updates = append(updates, firestore.Update{Path: "conversationStatus", Value: types.Completed})
	}
	if len(updates) == 0 {
		return nil
	}

	if _, err := s.reports().Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("revise %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to revise report %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*types.EmergencyReport, error) {
	doc, err := s.reports().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting report %s: %w", id, err)
	}
	return decodeReport(doc)
}

func (s *FirestoreStore) ListByParent(ctx context.Context, starterID string) ([]types.EmergencyReport, error) {
	q := s.reports().Where("parentId", "==", starterID).OrderBy("step", firestore.Asc)
	return collect(q.Documents(ctx))
}

func (s *FirestoreStore) Recent(ctx context.Context, since time.Time, limit int) ([]types.EmergencyReport, error) {
	q := s.reports().Where("receivedAt", ">=", since.UTC()).OrderBy("receivedAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return collect(q.Documents(ctx))
}

// Ping reads at most one document to check the connection.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.reports().Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("ping firestore: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func collect(iter *firestore.DocumentIterator) ([]types.EmergencyReport, error) {
	defer iter.Stop()
	var out []types.EmergencyReport
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating reports: %w", err)
		}
		r, err := decodeReport(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func decodeReport(doc *firestore.DocumentSnapshot) (*types.EmergencyReport, error) {
	var r types.EmergencyReport
	if err := doc.DataTo(&r); err != nil {
		return nil, fmt.Errorf("error converting report %s: %w", doc.Ref.ID, err)
	}
	r.ID = doc.Ref.ID
	return &r, nil
}

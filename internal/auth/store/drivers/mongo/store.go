package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	accountsCollection    = "accounts"
	pendingOtpsCollection = "pending_otps"
)

// Store keeps accounts and pending codes in a MongoDB database, one document
// per account and one per pending code keyed by identity.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to uri and verifies the primary is reachable.
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) Close() error { return s.client.Disconnect(context.Background()) }

// Ping verifies the primary is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Accounts() store.Accounts {
	return &accountsRepo{coll: s.db.Collection(accountsCollection)}
}

func (s *Store) PendingOtps() store.PendingOtps {
	return &pendingOtpsRepo{coll: s.db.Collection(pendingOtpsCollection)}
}

// ApplyMigrations creates the indexes the repositories depend on. Creating an
// existing index with the same definition is a no-op.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	// 1. Accounts are unique by identity
	_, err := s.db.Collection(accountsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identity", Value: 1}},
		Options: options.Index().SetName("accounts_identity_uq").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: accounts index: %w", err)
	}

	// 2. Pending codes are keyed by _id (the identity), index expiry for
	// housekeeping sweeps
	_, err = s.db.Collection(pendingOtpsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetName("pending_otps_expires_idx"),
	})
	if err != nil {
		return fmt.Errorf("mongo: pending_otps index: %w", err)
	}

	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func mapDuplicate(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrAlreadyExists
	}
	return err
}

package mongo

import (
	"context"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type otpDoc struct {
	Identity  string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	CodeHash  string    `bson:"code_hash"`
	Attempts  int       `bson:"attempts"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d otpDoc) toDomain() domain.PendingOtp {
	return domain.PendingOtp{
		Identity:  domain.Identity{Kind: domain.IdentityKind(d.Kind), Value: d.Identity},
		CodeHash:  d.CodeHash,
		Attempts:  d.Attempts,
		ExpiresAt: d.ExpiresAt.UTC(),
		CreatedAt: d.CreatedAt.UTC(),
	}
}

type pendingOtpsRepo struct {
	coll *mongo.Collection
}

func (r *pendingOtpsRepo) UpsertOtp(ctx context.Context, p domain.PendingOtp) error {
	doc := otpDoc{
		Identity:  p.Identity.Value,
		Kind:      string(p.Identity.Kind),
		CodeHash:  p.CodeHash,
		ExpiresAt: p.ExpiresAt,
		CreatedAt: p.CreatedAt,
	}
	opts := options.Replace().SetUpsert(true)

	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.Identity}, doc, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced to insert; the loser retries as a replace.
		_, err = r.coll.ReplaceOne(ctx, bson.M{"_id": doc.Identity}, doc, opts)
	}
	return err
}

func (r *pendingOtpsRepo) GetOtp(ctx context.Context, identity string) (domain.PendingOtp, error) {
	var doc otpDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": identity}).Decode(&doc); err != nil {
		return domain.PendingOtp{}, mapNotFound(err)
	}
	return doc.toDomain(), nil
}

func (r *pendingOtpsRepo) ConsumeOtp(ctx context.Context, identity, codeHash string, now time.Time) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{
		"_id":        identity,
		"code_hash":  codeHash,
		"expires_at": bson.M{"$gte": now},
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *pendingOtpsRepo) IncrementOtpAttempts(ctx context.Context, identity string) (int, error) {
	var doc otpDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": identity},
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return doc.Attempts, nil
}

func (r *pendingOtpsRepo) DeleteOtp(ctx context.Context, identity string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": identity})
	return err
}

func (r *pendingOtpsRepo) DeleteExpiredOtps(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

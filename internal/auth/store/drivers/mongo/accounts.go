package mongo

import (
	"context"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type accountDoc struct {
	ID           string    `bson:"_id"`
	Identity     string    `bson:"identity"`
	Kind         string    `bson:"kind"`
	DisplayName  string    `bson:"display_name"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	Active       bool      `bson:"active"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d accountDoc) toDomain() domain.Account {
	return domain.Account{
		ID:           d.ID,
		Identity:     domain.Identity{Kind: domain.IdentityKind(d.Kind), Value: d.Identity},
		DisplayName:  d.DisplayName,
		PasswordHash: d.PasswordHash,
		Role:         domain.ParseRole(d.Role),
		Active:       d.Active,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type accountsRepo struct {
	coll *mongo.Collection
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *accountsRepo) GetAccountByIdentity(ctx context.Context, identity string) (domain.Account, error) {
	return r.findOne(ctx, bson.M{"identity": identity})
}

func (r *accountsRepo) findOne(ctx context.Context, filter bson.M) (domain.Account, error) {
	var doc accountDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return doc.toDomain(), nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.coll.InsertOne(ctx, accountDoc{
		ID:           a.ID,
		Identity:     a.Identity.Value,
		Kind:         string(a.Identity.Kind),
		DisplayName:  a.DisplayName,
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
		Active:       a.Active,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	})
	return mapDuplicate(err)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	return r.set(ctx, id, bson.M{"password_hash": hash, "updated_at": now})
}

func (r *accountsRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	return r.set(ctx, id, bson.M{"active": active, "updated_at": now})
}

func (r *accountsRepo) set(ctx context.Context, id string, fields bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

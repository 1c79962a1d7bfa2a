package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

// Mongo stores accounts in the users collection. Email uniqueness is
// enforced by the index created in database.EnsureMongoIndexes.
type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: db.Collection(database.CollectionAccounts)}
}

func (r *Mongo) Create(ctx context.Context, a *entity.Account) error {
	if _, err := r.coll.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return database.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *Mongo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *Mongo) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *Mongo) findOne(ctx context.Context, filter bson.D) (*entity.Account, error) {
	var a entity.Account
	if err := r.coll.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *Mongo) MarkVerified(ctx context.Context, id string) error {
	return r.set(ctx, id, bson.D{{Key: "isVerified", Value: true}})
}

// IncrementLoginAttempts uses $inc so concurrent failures are all counted.
func (r *Mongo) IncrementLoginAttempts(ctx context.Context, id string) (int, error) {
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "loginAttempts", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a entity.Account
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, opts).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, database.ErrNotFound
		}
		return 0, err
	}
	return a.LoginAttempts, nil
}

func (r *Mongo) ResetLoginAttempts(ctx context.Context, id string) error {
	return r.set(ctx, id, bson.D{{Key: "loginAttempts", Value: 0}})
}

func (r *Mongo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.set(ctx, id, bson.D{{Key: "password", Value: hash}, {Key: "loginAttempts", Value: 0}})
}

func (r *Mongo) LinkGoogle(ctx context.Context, id, googleID string) error {
	return r.set(ctx, id, bson.D{{Key: "googleId", Value: googleID}, {Key: "isVerified", Value: true}})
}

func (r *Mongo) ClaimForGoogle(ctx context.Context, id, googleID, name string) error {
	return r.set(ctx, id, bson.D{
		{Key: "googleId", Value: googleID},
		{Key: "name", Value: name},
		{Key: "password", Value: nil},
		{Key: "isVerified", Value: true},
		{Key: "loginAttempts", Value: 0},
	})
}

func (r *Mongo) set(ctx context.Context, id string, fields bson.D) error {
	fields = append(fields, bson.E{Key: "updatedAt", Value: time.Now().UTC()})
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: fields}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/accord/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type userDocument struct {
	ID               bson.ObjectID `bson:"_id"`
	Email            string        `bson:"email"`
	Username         string        `bson:"username"`
	IsOAuthAccount   bool          `bson:"isOAuthAccount"`
	RefreshTokenHash *string       `bson:"refreshTokenHash"`
	CreatedAt        time.Time     `bson:"createdAt"`
	UpdatedAt        time.Time     `bson:"updatedAt"`
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:               d.ID.Hex(),
		Email:            d.Email,
		Username:         d.Username,
		IsOAuthAccount:   d.IsOAuthAccount,
		RefreshTokenHash: d.RefreshTokenHash,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func newUserDocument(u *models.User, now time.Time) userDocument {
	return userDocument{
		ID:               bson.NewObjectID(),
		Email:            strings.ToLower(u.Email),
		Username:         u.Username,
		IsOAuthAccount:   u.IsOAuthAccount,
		RefreshTokenHash: u.RefreshTokenHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(usersCollection)}
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: strings.ToLower(email)}})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return doc.toModel(), nil
}

func (s *UserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	doc := newUserDocument(user, time.Now().UTC())

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, mapInsertError(err)
	}
	return doc.toModel(), nil
}

func (s *UserStore) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrNotFound
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refreshTokenHash", Value: hash},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("failed to update refresh token hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SwapRefreshTokenHash filters on the expected hash so the replacement is a
// single atomic document update.
func (s *UserStore) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) (bool, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "refreshTokenHash", Value: expected}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refreshTokenHash", Value: next},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token hash: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func mapInsertError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	if strings.Contains(err.Error(), userUsernameIndex) {
		return models.ErrUsernameTaken
	}
	return models.ErrConflict
}

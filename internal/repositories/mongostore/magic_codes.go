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
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type magicCodeDocument struct {
	Email     string    `bson:"email"`
	Code      string    `bson:"code"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

type MagicCodeStore struct {
	coll *mongo.Collection
}

func NewMagicCodeStore(db *mongo.Database) *MagicCodeStore {
	return &MagicCodeStore{coll: db.Collection(magicCodesCollection)}
}

func (s *MagicCodeStore) Upsert(ctx context.Context, code *models.MagicCode) error {
	email := strings.ToLower(code.Email)

	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "email", Value: email}},
		bson.D{{Key: "$set", Value: magicCodeDocument{
			Email:     email,
			Code:      code.Code,
			ExpiresAt: code.ExpiresAt,
			CreatedAt: code.CreatedAt,
		}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert magic code: %w", err)
	}
	return nil
}

// ConsumeIfMatch deletes the matching live record in one server round trip.
func (s *MagicCodeStore) ConsumeIfMatch(ctx context.Context, email, code string, now time.Time) (bool, error) {
	filter := bson.D{
		{Key: "email", Value: strings.ToLower(email)},
		{Key: "code", Value: code},
		{Key: "expiresAt", Value: bson.D{{Key: "$gt", Value: now}}},
	}

	err := s.coll.FindOneAndDelete(ctx, filter).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume magic code: %w", err)
	}
	return true, nil
}

func (s *MagicCodeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{{Key: "expiresAt", Value: bson.D{{Key: "$lte", Value: now}}}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired magic codes: %w", err)
	}
	return res.DeletedCount, nil
}

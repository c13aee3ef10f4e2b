// Package mongostore implements the user and magic code stores on MongoDB.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection      = "users"
	magicCodesCollection = "magic_codes"

	userEmailIndex      = "users_email_key"
	userUsernameIndex   = "users_username_key"
	magicCodeEmailIndex = "magic_codes_email_key"
	magicCodeTTLIndex   = "magic_codes_expires_at_ttl"
)

// EnsureIndexes creates the unique and TTL indexes both stores rely on.
// It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(userEmailIndex),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(userUsernameIndex),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = db.Collection(magicCodesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(magicCodeEmailIndex),
		},
		{
			// Server-side expiry backs up the cleanup worker
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName(magicCodeTTLIndex),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create magic code indexes: %w", err)
	}

	return nil
}

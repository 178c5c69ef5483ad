// Package mongostore opens the MongoDB client shared by the mongo catalog and
// the GridFS blob store, and bootstraps the collections they use.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names in the ExtractIQ database.
const (
	DocumentsCollection = "Documents"
	SchemasCollection   = "schemas"
)

// Store bundles the client and the selected database. Close releases the
// client's connections.
type Store struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect dials MongoDB and pings the primary.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{Client: client, DB: client.Database(database)}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// EnsureCollections creates the catalog collections when they are missing and
// indexes document names for lookups by file name.
func (s *Store) EnsureCollections(ctx context.Context) error {
	existing, err := s.DB.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range MissingCollections(existing) {
		if err := s.DB.CreateCollection(ctx, name); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	_, err = s.DB.Collection(DocumentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}, {Key: "uploaded_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create documents index: %w", err)
	}
	return nil
}

// MissingCollections returns the required collections absent from existing.
func MissingCollections(existing []string) []string {
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}
	var missing []string
	for _, name := range []string{DocumentsCollection, SchemasCollection} {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

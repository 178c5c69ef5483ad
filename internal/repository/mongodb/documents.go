// Package mongodb stores catalog entries and schema definitions in the
// ExtractIQ MongoDB database.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/mongostore"
)

// documentRecord is the BSON shape of a catalog entry.
type documentRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	ContentType string             `bson:"content_type"`
	Size        int64              `bson:"size"`
	UploadedAt  time.Time          `bson:"uploaded_at"`
	Status      string             `bson:"status"`
	BlobRef     string             `bson:"blob_ref"`
}

func (r documentRecord) entry() model.CatalogEntry {
	return model.CatalogEntry{
		ID:          r.ID.Hex(),
		Name:        r.Name,
		ContentType: r.ContentType,
		Size:        r.Size,
		UploadedAt:  r.UploadedAt.UTC(),
		Status:      model.DocumentStatus(r.Status),
		BlobRef:     r.BlobRef,
	}
}

// DocumentRepository reads and writes the Documents collection.
type DocumentRepository struct {
	coll *mongo.Collection
}

// NewDocumentRepository constructs a repository on the store's database.
func NewDocumentRepository(store *mongostore.Store) *DocumentRepository {
	return &DocumentRepository{coll: store.DB.Collection(mongostore.DocumentsCollection)}
}

// Insert assigns a fresh ObjectID and stores the entry.
func (r *DocumentRepository) Insert(ctx context.Context, entry *model.CatalogEntry) error {
	rec := documentRecord{
		ID:          primitive.NewObjectID(),
		Name:        entry.Name,
		ContentType: entry.ContentType,
		Size:        entry.Size,
		UploadedAt:  entry.UploadedAt,
		Status:      string(entry.Status),
		BlobRef:     entry.BlobRef,
	}
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	entry.ID = rec.ID.Hex()
	return nil
}

// Get returns an entry by id. Ids that are not ObjectIDs report ErrNotFound.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.CatalogEntry, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, model.NotFoundf("document %q", id)
	}
	var rec documentRecord
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NotFoundf("document %q", id)
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	entry := rec.entry()
	return &entry, nil
}

// List returns every entry in insertion order.
func (r *DocumentRepository) List(ctx context.Context) ([]model.CatalogEntry, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var recs []documentRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	out := make([]model.CatalogEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.entry())
	}
	return out, nil
}

// FindByName returns the newest entry with the given name.
func (r *DocumentRepository) FindByName(ctx context.Context, name string) (*model.CatalogEntry, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "uploaded_at", Value: -1}, {Key: "_id", Value: -1}})
	var rec documentRecord
	if err := r.coll.FindOne(ctx, bson.M{"name": name}, opts).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NotFoundf("document named %q", name)
		}
		return nil, fmt.Errorf("find document by name: %w", err)
	}
	entry := rec.entry()
	return &entry, nil
}

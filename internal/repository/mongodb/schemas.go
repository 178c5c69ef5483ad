package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/mongostore"
)

type schemaRecord struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Prompt   string             `bson:"prompt"`
	Examples []exampleRecord    `bson:"examples"`
}

type exampleRecord struct {
	Text        string             `bson:"text"`
	Extractions []extractionRecord `bson:"extractions"`
}

type extractionRecord struct {
	Class      string `bson:"extraction_class"`
	Text       string `bson:"extraction_text"`
	Attributes bson.M `bson:"attributes"`
	Color      string `bson:"color"`
}

// SchemaRepository reads and writes the schemas collection.
type SchemaRepository struct {
	coll *mongo.Collection
}

// NewSchemaRepository constructs a repository on the store's database.
func NewSchemaRepository(store *mongostore.Store) *SchemaRepository {
	return &SchemaRepository{coll: store.DB.Collection(mongostore.SchemasCollection)}
}

func (r *SchemaRepository) Create(ctx context.Context, schema *model.Schema) error {
	rec := toSchemaRecord(*schema)
	rec.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert schema: %w", err)
	}
	schema.ID = rec.ID.Hex()
	return nil
}

func (r *SchemaRepository) List(ctx context.Context) ([]model.Schema, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	var recs []schemaRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode schemas: %w", err)
	}
	out := make([]model.Schema, 0, len(recs))
	for _, rec := range recs {
		schema, err := fromSchemaRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, schema)
	}
	return out, nil
}

func (r *SchemaRepository) Get(ctx context.Context, id string) (*model.Schema, error) {
	oid, err := parseSchemaID(id)
	if err != nil {
		return nil, err
	}
	var rec schemaRecord
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NotFoundf("schema %q", id)
		}
		return nil, fmt.Errorf("find schema: %w", err)
	}
	schema, err := fromSchemaRecord(rec)
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// Replace swaps the whole stored document for the new definition.
func (r *SchemaRepository) Replace(ctx context.Context, schema *model.Schema) error {
	oid, err := parseSchemaID(schema.ID)
	if err != nil {
		return err
	}
	rec := toSchemaRecord(*schema)
	rec.ID = oid
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid}, rec)
	if err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.NotFoundf("schema %q", schema.ID)
	}
	return nil
}

func (r *SchemaRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseSchemaID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	if res.DeletedCount == 0 {
		return model.NotFoundf("schema %q", id)
	}
	return nil
}

func parseSchemaID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, model.Validationf("invalid schema id %q", id)
	}
	return oid, nil
}

func toSchemaRecord(schema model.Schema) schemaRecord {
	rec := schemaRecord{Prompt: schema.Prompt, Examples: make([]exampleRecord, 0, len(schema.Examples))}
	for _, ex := range schema.Examples {
		exRec := exampleRecord{Text: ex.Text, Extractions: make([]extractionRecord, 0, len(ex.Extractions))}
		for _, e := range ex.Extractions {
			attrs := bson.M{}
			for k, v := range e.Attributes {
				attrs[k] = v.Interface()
			}
			exRec.Extractions = append(exRec.Extractions, extractionRecord{
				Class:      e.Class,
				Text:       e.Text,
				Attributes: attrs,
				Color:      e.Color,
			})
		}
		rec.Examples = append(rec.Examples, exRec)
	}
	return rec
}

func fromSchemaRecord(rec schemaRecord) (model.Schema, error) {
	schema := model.Schema{ID: rec.ID.Hex(), Prompt: rec.Prompt, Examples: make([]model.Example, 0, len(rec.Examples))}
	for _, exRec := range rec.Examples {
		ex := model.Example{Text: exRec.Text, Extractions: make([]model.Extraction, 0, len(exRec.Extractions))}
		for _, e := range exRec.Extractions {
			attrs := make(model.Attributes, len(e.Attributes))
			for k, raw := range e.Attributes {
				v, err := model.AttributeFromInterface(bsonToPlain(raw))
				if err != nil {
					return model.Schema{}, fmt.Errorf("decode attribute %q of schema %s: %w", k, schema.ID, err)
				}
				attrs[k] = v
			}
			ex.Extractions = append(ex.Extractions, model.Extraction{
				Class:      e.Class,
				Text:       e.Text,
				Attributes: attrs,
				Color:      e.Color,
			})
		}
		schema.Examples = append(schema.Examples, ex)
	}
	return schema, nil
}

// bsonToPlain unwraps driver array types so the attribute union sees []any.
func bsonToPlain(raw any) any {
	switch v := raw.(type) {
	case primitive.A:
		return []any(v)
	default:
		return raw
	}
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

// SchemaRepository stores schema definitions with their examples as JSONB.
type SchemaRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSchemaRepository constructs a repository.
func NewSchemaRepository(db *sql.DB) *SchemaRepository {
	return &SchemaRepository{db: db, now: time.Now}
}

func (r *SchemaRepository) Create(ctx context.Context, schema *model.Schema) error {
	examples, err := encodeExamples(schema.Examples)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	now := r.now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO schemas (id, prompt, examples, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
	`, id, schema.Prompt, examples, now, now)
	if err != nil {
		return fmt.Errorf("insert schema: %w", err)
	}
	schema.ID = id
	return nil
}

func (r *SchemaRepository) List(ctx context.Context) ([]model.Schema, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, prompt, examples FROM schemas ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	out := make([]model.Schema, 0)
	for rows.Next() {
		schema, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *schema)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return out, nil
}

func (r *SchemaRepository) Get(ctx context.Context, id string) (*model.Schema, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT id, prompt, examples FROM schemas WHERE id=$1`, id)
	schema, err := scanSchema(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundf("schema %q", id)
		}
		return nil, err
	}
	return schema, nil
}

// Replace overwrites prompt and examples of an existing schema.
func (r *SchemaRepository) Replace(ctx context.Context, schema *model.Schema) error {
	if err := validateID(schema.ID); err != nil {
		return err
	}
	examples, err := encodeExamples(schema.Examples)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE schemas
		SET prompt=$2, examples=$3, updated_at=$4
		WHERE id=$1
	`, schema.ID, schema.Prompt, examples, r.now().UTC())
	if err != nil {
		return fmt.Errorf("update schema: %w", err)
	}
	return expectOneRow(res, schema.ID)
}

func (r *SchemaRepository) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM schemas WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	return expectOneRow(res, id)
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.Validationf("invalid schema id %q", id)
	}
	return nil
}

func expectOneRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return model.NotFoundf("schema %q", id)
	}
	return nil
}

func encodeExamples(examples []model.Example) ([]byte, error) {
	data, err := json.Marshal(model.NormalizeExamples(examples))
	if err != nil {
		return nil, fmt.Errorf("encode examples: %w", err)
	}
	return data, nil
}

func scanSchema(row rowScanner) (*model.Schema, error) {
	var (
		schema   model.Schema
		examples []byte
	)
	if err := row.Scan(&schema.ID, &schema.Prompt, &examples); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan schema: %w", err)
	}
	if len(examples) > 0 {
		if err := json.Unmarshal(examples, &schema.Examples); err != nil {
			return nil, fmt.Errorf("decode examples of schema %s: %w", schema.ID, err)
		}
	}
	schema.Normalize()
	return &schema, nil
}

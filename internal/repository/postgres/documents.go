// Package postgres stores catalog entries and schema definitions in
// PostgreSQL through database/sql and the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

// DocumentRepository wraps all SQL touching the documents table.
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository constructs a repository.
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, name, content_type, size, blob_ref, status, uploaded_at`

// Insert assigns a UUID and stores the entry.
func (r *DocumentRepository) Insert(ctx context.Context, entry *model.CatalogEntry) error {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, id, entry.Name, entry.ContentType, entry.Size, entry.BlobRef, string(entry.Status), entry.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	entry.ID = id
	return nil
}

// Get returns a document by id. Malformed ids are reported as not found.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.CatalogEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NotFoundf("document %q", id)
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	entry, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundf("document %q", id)
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	return entry, nil
}

// List returns every document ordered by upload time.
func (r *DocumentRepository) List(ctx context.Context) ([]model.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]model.CatalogEntry, 0)
	for rows.Next() {
		entry, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// FindByName returns the most recently uploaded document with that name.
func (r *DocumentRepository) FindByName(ctx context.Context, name string) (*model.CatalogEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE name=$1
		ORDER BY uploaded_at DESC
		LIMIT 1
	`, name)
	entry, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundf("document named %q", name)
		}
		return nil, fmt.Errorf("select document by name: %w", err)
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.CatalogEntry, error) {
	var (
		entry  model.CatalogEntry
		status string
	)
	if err := row.Scan(&entry.ID, &entry.Name, &entry.ContentType, &entry.Size, &entry.BlobRef, &status, &entry.UploadedAt); err != nil {
		return nil, err
	}
	entry.Status = model.DocumentStatus(status)
	entry.UploadedAt = entry.UploadedAt.UTC()
	return &entry, nil
}

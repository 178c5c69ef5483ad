// Package documents orchestrates uploads into the blob store and the metadata
// catalog, and joins the two again on download.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

const defaultContentType = "application/octet-stream"

// BlobStore persists document bytes under an opaque reference.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// Catalog stores document metadata. Insert assigns entry.ID.
type Catalog interface {
	Insert(ctx context.Context, entry *model.CatalogEntry) error
	Get(ctx context.Context, id string) (*model.CatalogEntry, error)
	List(ctx context.Context) ([]model.CatalogEntry, error)
	FindByName(ctx context.Context, name string) (*model.CatalogEntry, error)
}

// OrphanReporter takes ownership of a blob whose catalog insert failed and
// whose immediate delete failed as well.
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, blobRef string) error
}

// UploadNotifier is told about every successful upload.
type UploadNotifier interface {
	DocumentUploaded(ctx context.Context, entry model.CatalogEntry) error
}

// Options tunes a Service. Zero values are valid.
type Options struct {
	AllowedExtensions []string
	MaxUploadBytes    int64
	Orphans           OrphanReporter
	Notifier          UploadNotifier
	Logger            *slog.Logger
	Now               func() time.Time
}

// Service implements upload, listing and download of documents.
type Service struct {
	catalog  Catalog
	blobs    BlobStore
	orphans  OrphanReporter
	notifier UploadNotifier
	allowed  map[string]struct{}
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

// Download is the result of a successful Download call. Callers must close Body.
type Download struct {
	Entry model.CatalogEntry
	Body  io.ReadCloser
}

// NewService wires a Service.
func NewService(catalog Catalog, blobs BlobStore, opts Options) *Service {
	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[normalizeExt(ext)] = struct{}{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		catalog:  catalog,
		blobs:    blobs,
		orphans:  opts.Orphans,
		notifier: opts.Notifier,
		allowed:  allowed,
		maxBytes: opts.MaxUploadBytes,
		logger:   logger,
		now:      now,
	}
}

// Upload validates the file name, stores the bytes and records the catalog
// entry. Validation happens before any store I/O.
func (s *Service) Upload(ctx context.Context, fileName, contentType string, body io.Reader) (*model.CatalogEntry, error) {
	if err := s.validateName(fileName); err != nil {
		return nil, err
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}
	data, err := s.readBody(body)
	if err != nil {
		return nil, err
	}

	key := blobKey(fileName)
	ref, err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		s.logger.Error("blob_write_failed", "file_name", fileName, "key", key, "error", err)
		return nil, model.WrapError(model.ErrStorage, "put blob", err)
	}

	entry := &model.CatalogEntry{
		Name:        fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  s.now().UTC(),
		Status:      model.StatusUploaded,
		BlobRef:     ref,
	}
	if err := s.catalog.Insert(ctx, entry); err != nil {
		s.logger.Error("catalog_insert_failed", "file_name", fileName, "blob_ref", ref, "error", err)
		s.compensate(ctx, ref)
		return nil, model.WrapError(model.ErrStorage, "insert catalog entry", err)
	}
	s.logger.Info("document_uploaded", "id", entry.ID, "file_name", fileName, "size", entry.Size)

	if s.notifier != nil {
		if err := s.notifier.DocumentUploaded(ctx, *entry); err != nil {
			s.logger.Warn("upload_notification_failed", "id", entry.ID, "error", err)
		}
	}
	return entry, nil
}

// compensate removes a blob that no catalog entry will ever reference. The
// request has already failed; this only limits the leak.
func (s *Service) compensate(ctx context.Context, ref string) {
	cleanupCtx := context.WithoutCancel(ctx)
	err := s.blobs.Delete(cleanupCtx, ref)
	if err == nil || model.IsKind(err, model.ErrNotFound) {
		return
	}
	s.logger.Error("orphan_blob_delete_failed", "blob_ref", ref, "error", err)
	if s.orphans == nil {
		s.logger.Error("orphan_blob_leaked", "blob_ref", ref)
		return
	}
	if err := s.orphans.ReportOrphan(cleanupCtx, ref); err != nil {
		s.logger.Error("orphan_blob_leaked", "blob_ref", ref, "error", err)
	}
}

// List returns every catalog entry in the store's natural order.
func (s *Service) List(ctx context.Context) ([]model.CatalogEntry, error) {
	entries, err := s.catalog.List(ctx)
	if err != nil {
		return nil, model.WrapError(model.ErrStorage, "list catalog entries", err)
	}
	if entries == nil {
		entries = []model.CatalogEntry{}
	}
	return entries, nil
}

// Download resolves the catalog entry and opens its blob.
func (s *Service) Download(ctx context.Context, id string) (*Download, error) {
	entry, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, lookupError("get catalog entry", err)
	}
	return s.open(ctx, entry)
}

// OpenByName opens the most recently uploaded document with the given name.
func (s *Service) OpenByName(ctx context.Context, fileName string) (*Download, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, model.Validationf("file name is required")
	}
	entry, err := s.catalog.FindByName(ctx, fileName)
	if err != nil {
		return nil, lookupError("find catalog entry by name", err)
	}
	return s.open(ctx, entry)
}

func (s *Service) open(ctx context.Context, entry *model.CatalogEntry) (*Download, error) {
	body, err := s.blobs.Open(ctx, entry.BlobRef)
	if err != nil {
		if model.IsKind(err, model.ErrNotFound) {
			// The catalog references a blob that is gone; report it, never mask it.
			s.logger.Error("catalog_blob_missing", "id", entry.ID, "blob_ref", entry.BlobRef)
			return nil, fmt.Errorf("open blob for entry %s: %w", entry.ID, err)
		}
		return nil, model.WrapError(model.ErrStorage, "open blob", err)
	}
	return &Download{Entry: *entry, Body: body}, nil
}

func (s *Service) validateName(fileName string) error {
	if strings.TrimSpace(fileName) == "" {
		return model.Validationf("file name is required")
	}
	ext := normalizeExt(filepath.Ext(fileName))
	if _, ok := s.allowed[ext]; !ok || ext == "" {
		return model.Validationf("file type %q is not allowed, allowed types: %s", ext, strings.Join(s.AllowedExtensions(), ", "))
	}
	return nil
}

func (s *Service) readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, model.Validationf("file body is required")
	}
	reader := body
	if s.maxBytes > 0 {
		reader = io.LimitReader(body, s.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, model.WrapError(model.ErrValidation, "read upload", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, model.Validationf("file exceeds limit (%d bytes)", s.maxBytes)
	}
	return data, nil
}

// AllowedExtensions lists the accepted extensions, sorted.
func (s *Service) AllowedExtensions() []string {
	out := make([]string, 0, len(s.allowed))
	for ext := range s.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func lookupError(operation string, err error) error {
	if model.IsKind(err, model.ErrNotFound) || model.IsKind(err, model.ErrValidation) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return model.WrapError(model.ErrStorage, operation, err)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// blobKey builds a fresh object key; the uuid keeps keys unique even when
// clients reuse file names.
func blobKey(fileName string) string {
	return fmt.Sprintf("documents/%s/%s", uuid.NewString(), sanitizeFilename(fileName))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}

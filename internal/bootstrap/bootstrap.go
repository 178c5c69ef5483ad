// Package bootstrap opens the configured backends and assembles the services
// used by the API server and the cleanup worker.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/extractiq/internal/config"
	"github.com/dharsanguruparan/extractiq/internal/database"
	"github.com/dharsanguruparan/extractiq/internal/documents"
	"github.com/dharsanguruparan/extractiq/internal/events"
	"github.com/dharsanguruparan/extractiq/internal/extraction"
	"github.com/dharsanguruparan/extractiq/internal/gcsstorage"
	"github.com/dharsanguruparan/extractiq/internal/gemini"
	"github.com/dharsanguruparan/extractiq/internal/gridfsstorage"
	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/mongostore"
	"github.com/dharsanguruparan/extractiq/internal/queue"
	"github.com/dharsanguruparan/extractiq/internal/repository/mongodb"
	"github.com/dharsanguruparan/extractiq/internal/repository/postgres"
	"github.com/dharsanguruparan/extractiq/internal/s3storage"
	"github.com/dharsanguruparan/extractiq/internal/schemas"
	"github.com/dharsanguruparan/extractiq/internal/storage"
)

const closeTimeout = 5 * time.Second

// App holds the assembled services and the handles that must be closed.
type App struct {
	Documents  *documents.Service
	Schemas    *schemas.Service
	Extraction *extraction.Gateway

	closers []func()
}

// New opens every backend named by cfg and wires the API services.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	app := &App{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var mongo *mongostore.Store
	if cfg.UsesMongo() {
		if mongo, err = app.openMongo(ctx, cfg); err != nil {
			return nil, err
		}
	}

	catalog, schemaStore, err := app.openCatalog(ctx, cfg, mongo)
	if err != nil {
		return nil, err
	}
	blobs, err := app.openBlobs(ctx, cfg, mongo)
	if err != nil {
		return nil, err
	}

	opts := documents.Options{
		AllowedExtensions: cfg.AllowedExtensions,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		Logger:            logger,
	}
	if cfg.RedisConfigured() {
		client := asynq.NewClient(RedisOpt(cfg))
		app.onClose(func() { _ = client.Close() })
		opts.Orphans = queue.NewOrphanQueue(client, cfg.BlobBackend, logger)
	}
	if cfg.NATSURL != "" {
		pub, err := events.Connect(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		app.onClose(pub.Close)
		opts.Notifier = pub
	}
	app.Documents = documents.NewService(catalog, blobs, opts)
	app.Schemas = schemas.NewService(schemaStore, logger)

	extractor, err := app.openExtractor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Extraction = extraction.NewGateway(extractor, app.Documents, cfg.DefaultExtractModel, logger)

	logger.Info("backends_ready",
		"catalog", cfg.CatalogBackend,
		"blobs", cfg.BlobBackend,
		"orphan_queue", cfg.RedisConfigured(),
		"notifications", cfg.NATSURL != "",
	)
	return app, nil
}

// NewBlobStore opens only the configured blob store; the worker needs
// nothing else.
func NewBlobStore(ctx context.Context, cfg *config.Config) (blobs documents.BlobStore, closeFn func(), err error) {
	app := &App{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()
	var mongo *mongostore.Store
	if cfg.BlobBackend == config.BackendGridFS {
		if mongo, err = app.openMongo(ctx, cfg); err != nil {
			return nil, nil, err
		}
	}
	if blobs, err = app.openBlobs(ctx, cfg, mongo); err != nil {
		return nil, nil, err
	}
	return blobs, app.Close, nil
}

// Close releases handles in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) openMongo(ctx context.Context, cfg *config.Config) (*mongostore.Store, error) {
	store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	a.onClose(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = store.Close(closeCtx)
	})
	return store, nil
}

func (a *App) openCatalog(ctx context.Context, cfg *config.Config, mongo *mongostore.Store) (documents.Catalog, schemas.Store, error) {
	switch cfg.CatalogBackend {
	case config.BackendMongo:
		if err := mongo.EnsureCollections(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure collections: %w", err)
		}
		return mongodb.NewDocumentRepository(mongo), mongodb.NewSchemaRepository(mongo), nil
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		a.onClose(pool.Close)
		db := database.OpenDB(pool)
		a.onClose(func() { _ = db.Close() })
		if err := database.EnsureSchema(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return postgres.NewDocumentRepository(db), postgres.NewSchemaRepository(db), nil
	default:
		return storage.NewMemoryCatalog(), storage.NewMemorySchemaStore(), nil
	}
}

func (a *App) openBlobs(ctx context.Context, cfg *config.Config, mongo *mongostore.Store) (documents.BlobStore, error) {
	switch cfg.BlobBackend {
	case config.BackendMinIO:
		store, err := s3storage.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		return store, nil
	case config.BackendGridFS:
		store, err := gridfsstorage.New(mongo.DB, cfg.GridFSBucket)
		if err != nil {
			return nil, fmt.Errorf("init gridfs: %w", err)
		}
		return store, nil
	case config.BackendGCS:
		store, err := gcsstorage.New(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("init gcs: %w", err)
		}
		a.onClose(func() { _ = store.Close() })
		return store, nil
	default:
		return storage.NewMemoryBlobStore(), nil
	}
}

func (a *App) openExtractor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (extraction.Extractor, error) {
	if cfg.GoogleProject == "" {
		logger.Warn("extractor_not_configured", "hint", "set GOOGLE_CLOUD_PROJECT to enable extraction")
		return unconfiguredExtractor{}, nil
	}
	extractor, err := gemini.New(ctx, cfg.GoogleProject, cfg.VertexRegion, logger)
	if err != nil {
		return nil, fmt.Errorf("init vertex ai: %w", err)
	}
	a.onClose(func() { _ = extractor.Close() })
	return extractor, nil
}

// RedisOpt returns the asynq connection settings for cfg.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

type unconfiguredExtractor struct{}

func (unconfiguredExtractor) Extract(context.Context, extraction.Request) (*model.ExtractionResult, error) {
	return nil, model.WrapError(model.ErrExtraction, "extract", fmt.Errorf("no extraction backend configured"))
}

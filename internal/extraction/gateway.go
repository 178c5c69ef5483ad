// Package extraction forwards text, prompt and examples to the extraction
// capability and returns its structured result unmodified.
package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dharsanguruparan/extractiq/internal/doctext"
	"github.com/dharsanguruparan/extractiq/internal/documents"
	"github.com/dharsanguruparan/extractiq/internal/model"
)

// Extractor is the hosted extraction capability.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*model.ExtractionResult, error)
}

// DocumentOpener resolves a stored document by file name.
type DocumentOpener interface {
	OpenByName(ctx context.Context, fileName string) (*documents.Download, error)
}

// Request is an inline extraction call.
type Request struct {
	Text     string
	Prompt   string
	ModelID  string
	Examples []model.Example
}

// DocumentRequest extracts from the newest stored document named FileName.
type DocumentRequest struct {
	FileName string
	Prompt   string
	ModelID  string
	Examples []model.Example
}

// Gateway validates requests and delegates to an Extractor.
type Gateway struct {
	extractor    Extractor
	docs         DocumentOpener
	defaultModel string
	logger       *slog.Logger
}

// NewGateway wires a Gateway. docs may be nil when stored-document extraction
// is not offered.
func NewGateway(extractor Extractor, docs DocumentOpener, defaultModel string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{extractor: extractor, docs: docs, defaultModel: defaultModel, logger: logger}
}

// Extract runs an inline extraction.
func (g *Gateway) Extract(ctx context.Context, req Request) (*model.ExtractionResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, model.Validationf("text is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, model.Validationf("prompt is required")
	}
	if req.ModelID == "" {
		req.ModelID = g.defaultModel
	}
	req.Examples = model.NormalizeExamples(req.Examples)

	start := time.Now()
	result, err := g.extractor.Extract(ctx, req)
	if err != nil {
		g.logger.Error("extraction_failed", "model_id", req.ModelID, "error", err)
		if model.IsKind(err, model.ErrValidation) {
			return nil, fmt.Errorf("extract: %w", err)
		}
		return nil, model.WrapError(model.ErrExtraction, "extract", err)
	}
	g.logger.Info("extraction_completed",
		"model_id", req.ModelID,
		"extractions", len(result.Extractions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// ExtractDocument loads a stored document, decodes its text and runs Extract.
func (g *Gateway) ExtractDocument(ctx context.Context, req DocumentRequest) (*model.ExtractionResult, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return nil, model.Validationf("fileName is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, model.Validationf("prompt is required")
	}
	if g.docs == nil {
		return nil, model.NotFoundf("stored document %q", req.FileName)
	}
	dl, err := g.docs.OpenByName(ctx, req.FileName)
	if err != nil {
		return nil, err
	}
	defer dl.Body.Close()

	data, err := io.ReadAll(dl.Body)
	if err != nil {
		return nil, model.WrapError(model.ErrStorage, "read stored document", err)
	}
	text, err := doctext.Decode(dl.Entry.Name, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, model.Validationf("document %s contains no extractable text", req.FileName)
	}
	g.logger.Debug("document_text_loaded", "id", dl.Entry.ID, "chars", len(text))

	return g.Extract(ctx, Request{
		Text:     text,
		Prompt:   req.Prompt,
		ModelID:  req.ModelID,
		Examples: req.Examples,
	})
}

// Package gemini implements the extraction capability on Vertex AI Gemini
// models.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/dharsanguruparan/extractiq/internal/extraction"
	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/validation"
)

const systemPrompt = "You are an information extraction engine. Extract spans from the input text exactly as they appear, " +
	"following the task description and mirroring the labeled examples. Respond with a single JSON object only."

const outputContract = `Respond with JSON of the form:
{"text": "<the input text>", "extractions": [{"extraction_class": "...", "extraction_text": "...", "attributes": {"name": "value"}, "color": ""}]}
Attribute values must be strings, numbers, booleans, null or arrays of strings.`

// Extractor calls a Gemini model per request; the model id comes from the
// request so callers can switch models without restarting.
type Extractor struct {
	client *genai.Client
	logger *slog.Logger
}

// New creates a Vertex AI client for the given project and region.
func New(ctx context.Context, projectID, region string, logger *slog.Logger) (*Extractor, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("gemini.New: projectID and region cannot be empty")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (e *Extractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Extract implements extraction.Extractor.
func (e *Extractor) Extract(ctx context.Context, req extraction.Request) (*model.ExtractionResult, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	m := e.client.GenerativeModel(req.ModelID)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	logCtx := e.logger.With("model_id", req.ModelID)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		logCtx.Error("gemini_call_failed", "error", err)
		return nil, fmt.Errorf("generate content: %w", err)
	}
	raw := responseText(resp)
	if raw == "" {
		return nil, fmt.Errorf("%w: gemini returned an empty response", model.ErrExtraction)
	}
	return parseResult(req.Text, []byte(raw))
}

// buildPrompt renders the task description, few-shot examples and the input.
func buildPrompt(req extraction.Request) (string, error) {
	examples, err := json.MarshalIndent(model.NormalizeExamples(req.Examples), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode examples: %w", err)
	}
	var b strings.Builder
	b.WriteString("Task:\n")
	b.WriteString(strings.TrimSpace(req.Prompt))
	b.WriteString("\n\n")
	if len(req.Examples) > 0 {
		b.WriteString("Examples:\n")
		b.Write(examples)
		b.WriteString("\n\n")
	}
	b.WriteString(outputContract)
	b.WriteString("\n\nInput text:\n")
	b.WriteString(req.Text)
	return b.String(), nil
}

// responseText gets the raw text of the first candidate, without markdown
// fences.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return ""
	}
	clean := strings.TrimSpace(string(txt))
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

// parseResult checks the model output against the result schema. A mismatch
// is the model's failure, never the client's, so it is reported as
// ErrExtraction only.
func parseResult(inputText string, raw []byte) (*model.ExtractionResult, error) {
	if err := validation.ExtractionResult(raw); err != nil {
		return nil, fmt.Errorf("%w: model output rejected: %v", model.ErrExtraction, err)
	}
	var result model.ExtractionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decode model output: %v", model.ErrExtraction, err)
	}
	if result.Text == "" {
		result.Text = inputText
	}
	if result.Extractions == nil {
		result.Extractions = []model.Extraction{}
	}
	for i := range result.Extractions {
		if result.Extractions[i].Attributes == nil {
			result.Extractions[i].Attributes = model.Attributes{}
		}
	}
	return &result, nil
}

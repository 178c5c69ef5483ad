package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/dharsanguruparan/extractiq/internal/extraction"
	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/validation"
)

// extractBody is shared by both extraction routes. model_id is accepted as
// an alias of modelId.
type extractBody struct {
	Text         string          `json:"text"`
	FileName     string          `json:"fileName"`
	Prompt       string          `json:"prompt"`
	ModelID      string          `json:"modelId"`
	ModelIDAlias string          `json:"model_id"`
	Examples     json.RawMessage `json:"examples"`
}

func (b extractBody) modelID() string {
	if b.ModelID != "" {
		return b.ModelID
	}
	return b.ModelIDAlias
}

func decodeExtractBody(w http.ResponseWriter, r *http.Request) (*extractBody, []model.Example, error) {
	data, err := readJSONBody(w, r)
	if err != nil {
		return nil, nil, err
	}
	var body extractBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, nil, model.WrapError(model.ErrValidation, "decode extraction request", err)
	}
	var examples []model.Example
	raw := bytes.TrimSpace(body.Examples)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := validation.Examples(raw); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal(raw, &examples); err != nil {
			return nil, nil, model.WrapError(model.ErrValidation, "decode examples", err)
		}
	}
	return &body, examples, nil
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	body, examples, err := decodeExtractBody(w, r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	result, err := s.extract.Extract(r.Context(), extraction.Request{
		Text:     body.Text,
		Prompt:   body.Prompt,
		ModelID:  body.modelID(),
		Examples: examples,
	})
	s.finishExtraction(w, r, "inline", result, err)
}

func (s *Server) handleExtractDocument(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	body, examples, err := decodeExtractBody(w, r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	result, err := s.extract.ExtractDocument(r.Context(), extraction.DocumentRequest{
		FileName: body.FileName,
		Prompt:   body.Prompt,
		ModelID:  body.modelID(),
		Examples: examples,
	})
	s.finishExtraction(w, r, "document", result, err)
}

func (s *Server) finishExtraction(w http.ResponseWriter, r *http.Request, source string, result *model.ExtractionResult, err error) {
	if s.metrics != nil {
		s.metrics.RecordExtraction(source, err)
	}
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/schemas"
)

// maxJSONBody caps schema and extraction request bodies.
const maxJSONBody = 8 << 20

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.schemas.List(r.Context())
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	case http.MethodPost:
		def, err := decodeSchemaBody(w, r)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		created, err := s.schemas.Create(r.Context(), *def)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, created)
	default:
		allowMethods(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleSchemaRoute serves /schemas/{id} and /schemas/{id}/examples.
func (s *Server) handleSchemaRoute(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/schemas/"), "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleSchema(w, r, parts[0])
	case len(parts) == 2 && parts[0] != "" && parts[1] == "examples":
		if !allowMethods(w, r, http.MethodGet) {
			return
		}
		examples, err := s.schemas.Examples(r.Context(), parts[0])
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, examples)
	default:
		respondError(w, http.StatusNotFound, "route not found")
	}
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		schema, err := s.schemas.Get(ctx, id)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, schema)
	case http.MethodPut:
		def, err := decodeSchemaBody(w, r)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		updated, err := s.schemas.Update(ctx, id, *def)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.schemas.Delete(ctx, id); err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": schemas.DeletedMessage(id)})
	default:
		allowMethods(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func decodeSchemaBody(w http.ResponseWriter, r *http.Request) (*model.Schema, error) {
	data, err := readJSONBody(w, r)
	if err != nil {
		return nil, err
	}
	return schemas.DecodeDefinition(data)
}

func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return nil, model.WrapError(model.ErrValidation, "read request body", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, model.Validationf("request body is required")
	}
	return data, nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

// apiClient is a thin JSON client for the ExtractIQ HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return nil, &apiError{Status: resp.StatusCode, Message: payload.Error}
	}
	return resp, nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) Upload(ctx context.Context, path string) (*model.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	ctype := mime.TypeByExtension(filepath.Ext(path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	header.Set("Content-Type", ctype)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/upload/document", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var entry model.CatalogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &entry, nil
}

func (c *apiClient) Documents(ctx context.Context) ([]model.CatalogEntry, error) {
	var out []model.CatalogEntry
	err := c.doJSON(ctx, http.MethodGet, "/documents", nil, &out)
	return out, err
}

// Download streams a document into w and returns the served file name.
func (c *apiClient) Download(ctx context.Context, id string, w io.Writer) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/document/download/"+url.PathEscape(id), "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", err
	}
	return attachmentName(resp.Header.Get("Content-Disposition")), nil
}

func (c *apiClient) Export(ctx context.Context, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/documents/export", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *apiClient) Schemas(ctx context.Context) ([]model.Schema, error) {
	var out []model.Schema
	err := c.doJSON(ctx, http.MethodGet, "/schemas", nil, &out)
	return out, err
}

func (c *apiClient) Schema(ctx context.Context, id string) (*model.Schema, error) {
	var out model.Schema
	if err := c.doJSON(ctx, http.MethodGet, "/schemas/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) CreateSchema(ctx context.Context, definition json.RawMessage) (*model.Schema, error) {
	var out model.Schema
	if err := c.doJSON(ctx, http.MethodPost, "/schemas", definition, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) DeleteSchema(ctx context.Context, id string) (string, error) {
	var out map[string]string
	if err := c.doJSON(ctx, http.MethodDelete, "/schemas/"+url.PathEscape(id), nil, &out); err != nil {
		return "", err
	}
	return out["message"], nil
}

type extractPayload struct {
	Text     string          `json:"text,omitempty"`
	FileName string          `json:"fileName,omitempty"`
	Prompt   string          `json:"prompt"`
	ModelID  string          `json:"modelId,omitempty"`
	Examples []model.Example `json:"examples"`
}

func (c *apiClient) Extract(ctx context.Context, payload extractPayload) (*model.ExtractionResult, error) {
	path := "/extract"
	if payload.FileName != "" {
		path = "/extract/document"
	}
	var out model.ExtractionResult
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func attachmentName(header string) string {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return filepath.Base(params["filename"])
}

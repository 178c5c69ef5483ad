package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/dharsanguruparan/extractiq/internal/documents"
	"github.com/dharsanguruparan/extractiq/internal/extraction"
	"github.com/dharsanguruparan/extractiq/internal/logging"
	"github.com/dharsanguruparan/extractiq/internal/metrics"
	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/schemas"
	"github.com/dharsanguruparan/extractiq/internal/storage"
)

type stubExtractor struct {
	got    extraction.Request
	calls  int
	result *model.ExtractionResult
	err    error
}

func (s *stubExtractor) Extract(_ context.Context, req extraction.Request) (*model.ExtractionResult, error) {
	s.calls++
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &model.ExtractionResult{
		Text: req.Text,
		Extractions: []model.Extraction{{
			Class:      "person",
			Text:       "Ada",
			Attributes: model.Attributes{"role": model.StringAttribute("engineer")},
		}},
	}, nil
}

type testEnv struct {
	handler   http.Handler
	catalog   *storage.MemoryCatalog
	blobs     *storage.MemoryBlobStore
	extractor *stubExtractor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.Discard()
	catalog := storage.NewMemoryCatalog()
	blobs := storage.NewMemoryBlobStore()
	docs := documents.NewService(catalog, blobs, documents.Options{
		AllowedExtensions: []string{"pdf", "docx", "txt"},
		Logger:            logger,
	})
	extractor := &stubExtractor{}
	srv := New(Options{Address: ":0"}, Deps{
		Documents:  docs,
		Schemas:    schemas.NewService(storage.NewMemorySchemaStore(), logger),
		Extraction: extraction.NewGateway(extractor, docs, "gemini-1.5-flash", logger),
		Metrics:    metrics.NewHTTPServerMetrics("api-test"),
		Logger:     logger,
	})
	return &testEnv{handler: srv.Handler(), catalog: catalog, blobs: blobs, extractor: extractor}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, strings.NewReader(body), "application/json")
}

func multipartBody(t *testing.T, field, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "ignored"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, fileName, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, "file", fileName, contentType, data)
	return e.do(t, http.MethodPost, "/upload/document", body, ct)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRootReportsStatus(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decode[map[string]string](t, rec)
	if got["status"] != "Online" || got["version"] != Version {
		t.Fatalf("unexpected root payload %v", got)
	}

	if rec := env.do(t, http.MethodGet, "/nope", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", rec.Code)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	data := []byte("%PDF-1.4 fake body")

	rec := env.upload(t, "report.pdf", "application/pdf", data)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	entry := decode[map[string]any](t, rec)
	id, _ := entry["id"].(string)
	if id == "" || entry["name"] != "report.pdf" || entry["contentType"] != "application/pdf" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, leaked := entry["blobRef"]; leaked {
		t.Fatalf("blob reference must not be serialized: %v", entry)
	}

	rec = env.do(t, http.MethodGet, "/document/download/"+id, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Fatalf("downloaded bytes differ: %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "18" {
		t.Fatalf("unexpected content length %q", cl)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="report.pdf"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload(t, "malware.exe", "application/octet-stream", []byte("MZ"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.blobs.Len() != 0 {
		t.Fatalf("rejected upload must not write a blob")
	}
	list := decode[[]map[string]any](t, env.do(t, http.MethodGet, "/documents", nil, ""))
	if len(list) != 0 {
		t.Fatalf("rejected upload must not create an entry, got %v", list)
	}
}

func TestUploadRequiresFilePart(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartBody(t, "attachment", "report.pdf", "application/pdf", []byte("x"))
	if rec := env.do(t, http.MethodPost, "/upload/document", body, ct); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file part, got %d", rec.Code)
	}
	if rec := env.doJSON(t, http.MethodPost, "/upload/document", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart body, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/upload/document", nil, ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	} else if rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow: POST, got %q", rec.Header().Get("Allow"))
	}
}

func TestListDocumentsReturnsDistinctIDs(t *testing.T) {
	env := newTestEnv(t)
	if list := decode[[]map[string]any](t, env.do(t, http.MethodGet, "/documents", nil, "")); len(list) != 0 {
		t.Fatalf("expected empty list, got %v", list)
	}
	for _, name := range []string{"a.txt", "a.txt", "b.pdf"} {
		if rec := env.upload(t, name, "text/plain", []byte(name)); rec.Code != http.StatusOK {
			t.Fatalf("upload %s: %d", name, rec.Code)
		}
	}
	list := decode[[]map[string]any](t, env.do(t, http.MethodGet, "/documents", nil, ""))
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	seen := map[any]bool{}
	for _, entry := range list {
		if seen[entry["id"]] {
			t.Fatalf("duplicate id %v", entry["id"])
		}
		seen[entry["id"]] = true
	}
}

func TestDownloadUnknownID(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{
		"/document/download/3f1c9d8e-0000-4000-8000-000000000000",
		"/document/download/not-an-id",
		"/document/download/",
	} {
		if rec := env.do(t, http.MethodGet, path, nil, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestExportDocuments(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "a.txt", "text/plain", []byte("alpha"))

	rec := env.do(t, http.MethodGet, "/documents/export", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip container")
	}
}

func TestSchemaLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/schemas", `{"prompt":"extract names","examples":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[model.Schema](t, rec)
	if created.ID == "" || created.Prompt != "extract names" {
		t.Fatalf("unexpected created schema %+v", created)
	}

	got := decode[model.Schema](t, env.do(t, http.MethodGet, "/schemas/"+created.ID, nil, ""))
	if got.Prompt != "extract names" || got.Examples == nil || len(got.Examples) != 0 {
		t.Fatalf("unexpected schema %+v", got)
	}

	update := `{"prompt":"extract places","examples":[
		{"text":"Paris","extractions":[{"extraction_class":"city","extraction_text":"Paris","attributes":{"country":"FR"}}]},
		{"text":"Rome","extractions":[]},
		{"text":"Oslo","extractions":[]}
	]}`
	rec = env.doJSON(t, http.MethodPut, "/schemas/"+created.ID, update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	examples := decode[[]model.Example](t, env.do(t, http.MethodGet, "/schemas/"+created.ID+"/examples", nil, ""))
	if len(examples) != 3 || examples[0].Text != "Paris" || examples[2].Text != "Oslo" {
		t.Fatalf("unexpected examples %+v", examples)
	}
	if attr := examples[0].Extractions[0].Attributes["country"]; attr.String != "FR" {
		t.Fatalf("unexpected attribute %+v", attr)
	}

	list := decode[[]model.Schema](t, env.do(t, http.MethodGet, "/schemas", nil, ""))
	if len(list) != 1 || list[0].Prompt != "extract places" {
		t.Fatalf("unexpected list %+v", list)
	}

	rec = env.do(t, http.MethodDelete, "/schemas/"+created.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	msg := decode[map[string]string](t, rec)
	if msg["message"] != "Schema with ID "+created.ID+" deleted successfully" {
		t.Fatalf("unexpected delete message %q", msg["message"])
	}
	if rec := env.do(t, http.MethodDelete, "/schemas/"+created.ID, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestSchemaValidationFailures(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing prompt", http.MethodPost, "/schemas", `{"examples":[]}`, http.StatusBadRequest},
		{"nested attribute", http.MethodPost, "/schemas", `{"prompt":"p","examples":[{"text":"t","extractions":[{"extraction_class":"c","extraction_text":"t","attributes":{"x":{"y":1}}}]}]}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/schemas", ``, http.StatusBadRequest},
		{"malformed id", http.MethodGet, "/schemas/not-a-uuid", ``, http.StatusBadRequest},
		{"malformed id examples", http.MethodGet, "/schemas/not-a-uuid/examples", ``, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/schemas/3f1c9d8e-0000-4000-8000-000000000000", ``, http.StatusNotFound},
		{"unknown id update", http.MethodPut, "/schemas/3f1c9d8e-0000-4000-8000-000000000000", `{"prompt":"p","examples":[]}`, http.StatusNotFound},
		{"unknown subroute", http.MethodGet, "/schemas/3f1c9d8e-0000-4000-8000-000000000000/other", ``, http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/schemas", ``, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.doJSON(t, tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			if body := decode[map[string]string](t, rec); body["error"] == "" {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestExtractInline(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/extract", `{
		"text":"Ada is an engineer",
		"prompt":"extract people",
		"model_id":"gemini-2.0-flash",
		"examples":[{"text":"Bob","extractions":[{"extraction_class":"person","extraction_text":"Bob"}]}]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := decode[model.ExtractionResult](t, rec)
	if len(result.Extractions) != 1 || result.Extractions[0].Class != "person" {
		t.Fatalf("unexpected result %+v", result)
	}
	if env.extractor.got.ModelID != "gemini-2.0-flash" {
		t.Fatalf("model_id alias not honored, got %q", env.extractor.got.ModelID)
	}
	if len(env.extractor.got.Examples) != 1 || env.extractor.got.Examples[0].Text != "Bob" {
		t.Fatalf("examples not forwarded: %+v", env.extractor.got.Examples)
	}
}

func TestExtractInlineDefaultsModel(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/extract", `{"text":"Ada","prompt":"extract people"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.extractor.got.ModelID != "gemini-1.5-flash" {
		t.Fatalf("expected default model, got %q", env.extractor.got.ModelID)
	}
}

func TestExtractInlineFailures(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.doJSON(t, http.MethodPost, "/extract", `{"prompt":"p"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing text: expected 400, got %d", rec.Code)
	}
	if rec := env.doJSON(t, http.MethodPost, "/extract", `{"text":"t","prompt":"p","examples":[{"text":1}]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad examples: expected 400, got %d", rec.Code)
	}
	if rec := env.doJSON(t, http.MethodPost, "/extract", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", rec.Code)
	}
	if env.extractor.calls != 0 {
		t.Fatalf("invalid requests must not reach the extractor")
	}

	env.extractor.err = errors.New("quota exceeded")
	if rec := env.doJSON(t, http.MethodPost, "/extract", `{"text":"t","prompt":"p"}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("extractor failure: expected 500, got %d", rec.Code)
	}
}

func TestExtractStoredDocument(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "notes.txt", "text/plain", []byte("Ada Lovelace wrote the first program."))

	rec := env.doJSON(t, http.MethodPost, "/extract/document", `{"fileName":"notes.txt","prompt":"extract people"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.extractor.got.Text != "Ada Lovelace wrote the first program." {
		t.Fatalf("unexpected text forwarded %q", env.extractor.got.Text)
	}

	if rec := env.doJSON(t, http.MethodPost, "/extract/document", `{"fileName":"missing.txt","prompt":"p"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown file: expected 404, got %d", rec.Code)
	}
	if rec := env.doJSON(t, http.MethodPost, "/extract/document", `{"prompt":"p"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing fileName: expected 400, got %d", rec.Code)
	}
}

func TestMiddleware(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodOptions, "/schemas", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header on preflight")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	out := httptest.NewRecorder()
	env.handler.ServeHTTP(out, req)
	if out.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("expected request id to be echoed, got %q", out.Header().Get(requestIDHeader))
	}

	rec = env.do(t, http.MethodGet, "/healthz", nil, "")
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	rec = env.do(t, http.MethodGet, "/metrics", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "extractiq_http_requests_total") {
		t.Fatalf("expected metrics exposition, got %d", rec.Code)
	}
}

func TestContentDisposition(t *testing.T) {
	if got := contentDisposition(`my "report".pdf`); got != `attachment; filename="my _report_.pdf"` {
		t.Fatalf("unexpected header %q", got)
	}
	got := contentDisposition("résumé.pdf")
	if !strings.Contains(got, "filename*=UTF-8''r%C3%A9sum%C3%A9.pdf") {
		t.Fatalf("expected RFC 5987 parameter, got %q", got)
	}
	if !strings.Contains(got, `filename="r_sum_.pdf"`) {
		t.Fatalf("expected ASCII fallback, got %q", got)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.Validationf("bad"), http.StatusBadRequest},
		{model.NotFoundf("gone"), http.StatusNotFound},
		{model.WrapError(model.ErrStorage, "put blob", errors.New("disk")), http.StatusInternalServerError},
		{model.WrapError(model.ErrExtraction, "extract", errors.New("quota")), http.StatusInternalServerError},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

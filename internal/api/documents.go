package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if s.maxUploadBytes > 0 {
		// Leave room for the multipart envelope; the service enforces the exact limit.
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("expected multipart form: %v", err))
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, `multipart field "file" is required`)
			return
		}
		s.respondServiceError(w, r, model.WrapError(model.ErrValidation, "read multipart", err))
		return
	}
	defer part.Close()

	entry, err := s.docs.Upload(r.Context(), part.FileName(), part.Header.Get("Content-Type"), part)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveUpload(entry.Size)
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	entries, err := s.docs.List(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleExportDocuments(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	data, err := s.docs.ExportXLSX(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	name := fmt.Sprintf("documents-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", contentDisposition(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/document/download/"), "/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}
	dl, err := s.docs.Download(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", dl.Entry.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(dl.Entry.Size, 10))
	w.Header().Set("Content-Disposition", contentDisposition(dl.Entry.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		// Headers are gone already; all that is left is to record it.
		s.logger.Error("download_stream_failed",
			"request_id", requestIDFromContext(r.Context()),
			"id", id,
			"error", err,
		)
	}
}

// contentDisposition builds an attachment header. Names outside printable
// ASCII also get an RFC 5987 filename* parameter.
func contentDisposition(name string) string {
	extended := false
	fallback := strings.Map(func(r rune) rune {
		switch {
		case r > unicode.MaxASCII:
			extended = true
			return '_'
		case !unicode.IsPrint(r), r == '"', r == '\\':
			return '_'
		default:
			return r
		}
	}, name)
	header := fmt.Sprintf(`attachment; filename="%s"`, fallback)
	if extended {
		header += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return header
}

// nextFilePart skips form fields until the "file" part.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

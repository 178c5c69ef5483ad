// Package doctext turns stored document bytes into plain text for the
// extraction gateway.
package doctext

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

// Decode picks a decoder from the file extension.
func Decode(fileName string, data []byte) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	switch ext {
	case "txt":
		if !utf8.Valid(data) {
			return "", model.Validationf("%s is not valid UTF-8 text", fileName)
		}
		return string(data), nil
	case "pdf":
		return PDF(data)
	case "docx":
		return DOCX(data)
	case "doc":
		return "", model.Validationf("legacy .doc files cannot be read as text, convert %s to .docx or .pdf", fileName)
	default:
		return "", model.Validationf("no text decoder for %q files", ext)
	}
}

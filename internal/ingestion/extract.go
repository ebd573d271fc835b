package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// supportedExtensions lists the source document formats the pipeline can
// extract text from. Anything else in the intake directory is ignored.
var supportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Supported reports whether the file name has an extension the extractor
// understands.
func Supported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ExtractText returns the plain text content of the document at path.
// PDF pages that yield no text are skipped; a document whose pages all fail
// yields an empty string, not an error. Errors are returned only when the
// file itself cannot be opened or parsed.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("ingestion: read %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("ingestion: unsupported file type %q", filepath.Ext(path))
	}
}

// extractPDF extracts the text of every page of a PDF, joined with newlines.
func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("ingestion: open pdf %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not invalidate the document.
			continue
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

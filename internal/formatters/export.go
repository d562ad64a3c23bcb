package formatters

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"resumeflow/internal/types"
)

// Document names a downloadable document of the results stage
type Document string

const (
	DocOriginalResume  Document = "original-resume"
	DocOptimizedResume Document = "optimized-resume"
	DocCoverLetter     Document = "cover-letter"
)

// Documents lists every exportable document.
var Documents = []Document{DocOriginalResume, DocOptimizedResume, DocCoverLetter}

var extensions = map[string]string{
	FormatText:     ".txt",
	FormatMarkdown: ".md",
}

// ExportName returns the fixed download filename for doc in format.
func ExportName(doc Document, format string) (string, error) {
	ext, ok := extensions[format]
	if !ok {
		return "", fmt.Errorf("documents are exported as text or markdown, not %q", format)
	}
	return string(doc) + ext, nil
}

// ParseExportName splits a download filename such as "cover-letter.md" into
// its document and format.
func ParseExportName(name string) (Document, string, error) {
	ext := filepath.Ext(name)
	base := Document(strings.TrimSuffix(name, ext))
	format := ""
	for f, e := range extensions {
		if e == ext {
			format = f
		}
	}
	if format == "" {
		return "", "", fmt.Errorf("unknown export file %q", name)
	}
	for _, doc := range Documents {
		if doc == base {
			return doc, format, nil
		}
	}
	return "", "", fmt.Errorf("unknown export file %q", name)
}

// Export holds the three documents available on the results stage
type Export struct {
	Original    types.Resume
	Optimized   types.Resume
	CoverLetter types.CoverLetter
}

// Render formats doc in format using the global registry.
func (e Export) Render(doc Document, format string) (string, error) {
	var data any
	switch doc {
	case DocOriginalResume:
		data = e.Original
	case DocOptimizedResume:
		data = e.Optimized
	case DocCoverLetter:
		data = e.CoverLetter
	default:
		return "", fmt.Errorf("unknown document %q", doc)
	}
	if _, ok := extensions[format]; !ok {
		return "", fmt.Errorf("documents are exported as text or markdown, not %q", format)
	}
	return GlobalRegistry.Format(data, format)
}

// CopyResume returns the résumé as indented JSON for the clipboard.
func CopyResume(r types.Resume) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CopyCoverLetter returns the assembled letter text for the clipboard.
func CopyCoverLetter(c types.CoverLetter) string {
	return c.Text()
}

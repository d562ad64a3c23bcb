package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MIME types the backend knows how to extract text from
const (
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDOC      = "application/msword"
	MIMEMarkdown = "text/markdown"
	MIMEText     = "text/plain"
)

// resumeExtensions maps accepted upload extensions to their declared MIME type
var resumeExtensions = map[string]string{
	".pdf":      MIMEPDF,
	".docx":     MIMEDOCX,
	".doc":      MIMEDOC,
	".md":       MIMEMarkdown,
	".markdown": MIMEMarkdown,
	".txt":      MIMEText,
}

// ValidateInputFile checks if a file exists and is readable
func ValidateInputFile(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", filename)
		}
		return fmt.Errorf("cannot access file %s: %w", filename, err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filename)
	}

	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("cannot read file %s: %w", filename, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", filename, err)
	}

	return nil
}

// ValidateOutputFile checks if the output file path is valid
func ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// GetFileExtension returns the file extension in lowercase
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	return strings.ToLower(ext)
}

// IsTextFile checks if the file has a text-based extension
func IsTextFile(filename string) bool {
	ext := GetFileExtension(filename)
	textExtensions := []string{".txt", ".md", ".markdown", ".text"}

	return slices.Contains(textExtensions, ext)
}

// IsMarkdownFile reports whether the file should be read with the Markdown converter
func IsMarkdownFile(filename string) bool {
	ext := GetFileExtension(filename)
	return ext == ".md" || ext == ".markdown"
}

// IsSupportedResumeFile reports whether the backend accepts files with this extension
func IsSupportedResumeFile(filename string) bool {
	_, ok := resumeExtensions[GetFileExtension(filename)]
	return ok
}

// SupportedResumeExtensions lists accepted upload extensions in sorted order
func SupportedResumeExtensions() []string {
	exts := make([]string, 0, len(resumeExtensions))
	for ext := range resumeExtensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// DetectMIME returns the MIME type to declare for an upload. Known résumé
// extensions win; otherwise the content is sniffed.
func DetectMIME(filename string, content []byte) string {
	if mime, ok := resumeExtensions[GetFileExtension(filename)]; ok {
		return mime
	}
	detected := mimetype.Detect(content)
	// Drop parameters such as "; charset=utf-8"
	mime, _, _ := strings.Cut(detected.String(), ";")
	return strings.TrimSpace(mime)
}

// FormatFileSize returns a human-readable file size
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

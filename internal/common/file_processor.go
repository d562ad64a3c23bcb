package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"resumeflow/internal/errors"
	"resumeflow/internal/markdown"
	"resumeflow/internal/types"
	"resumeflow/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &FileProcessor{logger: logger}
}

// ReadBytes reads a whole file with proper error handling
func (fp *FileProcessor) ReadBytes(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			// Log the error but don't override the main operation result
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}
	return content, nil
}

// ReadFile reads content from a file as text
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	content, err := fp.ReadBytes(filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, []byte(content), 0600)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateAndReadFiles validates and reads multiple text input files
func (fp *FileProcessor) ValidateAndReadFiles(filenames ...string) ([]string, error) {
	contents := make([]string, len(filenames))

	for i, filename := range filenames {
		if err := utils.ValidateInputFile(filename); err != nil {
			return nil, errors.NewValidationError("INVALID_INPUT_FILE",
				fmt.Sprintf("Invalid file %s", filename), err)
		}

		// Warn about non-text files
		if !utils.IsTextFile(filename) {
			fp.logger.Warn("File may not be a text file", "filename", filename)
		}

		content, err := fp.ReadFile(filename)
		if err != nil {
			return nil, err // Error already wrapped by ReadFile
		}

		contents[i] = content
	}

	return contents, nil
}

// ReadUpload reads a résumé file to send for parsing. Files larger than
// maxSize are rejected before they are read.
func (fp *FileProcessor) ReadUpload(filename string, maxSize int64) (types.Upload, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		return types.Upload{}, errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}
	if maxSize > 0 {
		info, err := os.Stat(filename)
		if err == nil && info.Size() > maxSize {
			return types.Upload{}, errors.NewUserInputError(errors.ErrCodeFileTooLarge,
				fmt.Sprintf("File is %s; the limit is %s", utils.FormatFileSize(info.Size()), utils.FormatFileSize(maxSize)), nil)
		}
	}

	content, err := fp.ReadBytes(filename)
	if err != nil {
		return types.Upload{}, err
	}
	name := filepath.Base(filename)
	return types.Upload{
		FileName: name,
		MimeType: utils.DetectMIME(name, content),
		Content:  content,
	}, nil
}

// LoadResume reads a résumé saved as JSON, or as Markdown when the file has a
// Markdown extension.
func (fp *FileProcessor) LoadResume(filename string) (types.Resume, error) {
	text, err := fp.ReadFile(filename)
	if err != nil {
		return types.Resume{}, err
	}
	if utils.IsMarkdownFile(filename) {
		fp.logger.Debug("Reading résumé from Markdown", "filename", filename)
		return markdown.FromMarkdown(text), nil
	}

	var resume types.Resume
	if err := json.Unmarshal([]byte(text), &resume); err != nil {
		return types.Resume{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s is not a résumé JSON document", filename), err)
	}
	resume.EnsureIDs()
	return resume, nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}

package common

import (
	"fmt"
	"io"
	"path/filepath"

	"resumeflow/internal/errors"
	"resumeflow/internal/formatters"
)

// CommandConfig holds common configuration for commands
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
}

// OutputHandler handles formatting and writing output
type OutputHandler struct {
	fileProcessor *FileProcessor
	registry      *formatters.FormatterRegistry
	logger        *errors.Logger
	out           io.Writer
}

// NewOutputHandler creates an output handler printing to out when no output file is set
func NewOutputHandler(out io.Writer, logger *errors.Logger) *OutputHandler {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &OutputHandler{
		fileProcessor: NewFileProcessor(logger),
		registry:      formatters.GlobalRegistry,
		logger:        logger,
		out:           out,
	}
}

// HandleOutput formats data and writes it to the specified output
func (oh *OutputHandler) HandleOutput(data any, config CommandConfig) error {
	if err := oh.fileProcessor.ValidateOutputFile(config.OutputFile); err != nil {
		return err
	}

	output, err := oh.registry.Format(data, config.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to format output as %s", config.OutputFormat), err)
	}

	if config.OutputFile != "" {
		if err := oh.fileProcessor.WriteFile(config.OutputFile, output); err != nil {
			return err // Error already wrapped by WriteFile
		}
		oh.logger.Info("Output written successfully",
			"file", config.OutputFile, "format", config.OutputFormat)
		return nil
	}

	_, err = fmt.Fprintln(oh.out, output)
	return err
}

// WriteExports writes the three result documents into dir under their fixed
// download names and returns the paths written.
func (oh *OutputHandler) WriteExports(dir string, export formatters.Export, format string) ([]string, error) {
	paths := make([]string, 0, len(formatters.Documents))
	for _, doc := range formatters.Documents {
		name, err := formatters.ExportName(doc, format)
		if err != nil {
			return nil, errors.NewUserInputError(errors.ErrCodeInvalidFormat, err.Error(), err)
		}
		body, err := export.Render(doc, format)
		if err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeOperationFailed,
				fmt.Sprintf("Failed to render %s", name), err)
		}
		path := filepath.Join(dir, name)
		if err := oh.fileProcessor.WriteFile(path, body); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	oh.logger.Info("Exports written", "dir", dir, "format", format, "files", len(paths))
	return paths, nil
}

// GetSupportedFormats returns all supported output formats
func (oh *OutputHandler) GetSupportedFormats() []string {
	return oh.registry.GetSupportedFormats()
}

package common

import (
	"fmt"
	"slices"

	"resumeflow/internal/formatters"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidateExportFormat accepts the formats result documents can be downloaded in
func ValidateExportFormat(format string) error {
	if format == formatters.FormatText || format == formatters.FormatMarkdown {
		return nil
	}
	return fmt.Errorf("unsupported export format '%s'. Supported formats: [%s %s]",
		format, formatters.FormatText, formatters.FormatMarkdown)
}

// GetSupportedFormats returns the list of supported formats
func GetSupportedFormats(supportedFormats []string) []string {
	return supportedFormats
}

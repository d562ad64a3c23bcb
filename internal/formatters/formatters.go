package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"resumeflow/internal/markdown"
	"resumeflow/internal/types"
	"resumeflow/internal/validation"
)

// Output formats
const (
	FormatJSON     = "json"
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter(FormatJSON, "any", &JSONFormatter{})
	registry.RegisterFormatter(FormatText, "Resume", &ResumeTextFormatter{})
	registry.RegisterFormatter(FormatMarkdown, "Resume", &ResumeMarkdownFormatter{})
	registry.RegisterFormatter(FormatText, "OptimizedResume", &OptimizedTextFormatter{})
	registry.RegisterFormatter(FormatMarkdown, "OptimizedResume", &OptimizedMarkdownFormatter{})
	registry.RegisterFormatter(FormatText, "CoverLetter", &CoverLetterTextFormatter{})
	registry.RegisterFormatter(FormatMarkdown, "CoverLetter", &CoverLetterMarkdownFormatter{})
	registry.RegisterFormatter(FormatText, "ResumeValidation", &ValidationTextFormatter{})
	registry.RegisterFormatter(FormatMarkdown, "ResumeValidation", &ValidationMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats in a stable order
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.Resume, *types.Resume:
		return "Resume"
	case types.OptimizedResume, *types.OptimizedResume:
		return "OptimizedResume"
	case types.CoverLetter, *types.CoverLetter:
		return "CoverLetter"
	case types.ResumeValidation, *types.ResumeValidation:
		return "ResumeValidation"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

func asResume(data any) (types.Resume, error) {
	switch v := data.(type) {
	case types.Resume:
		return v, nil
	case *types.Resume:
		if v != nil {
			return *v, nil
		}
	}
	return types.Resume{}, fmt.Errorf("expected Resume, got %T", data)
}

func asOptimized(data any) (types.OptimizedResume, error) {
	switch v := data.(type) {
	case types.OptimizedResume:
		return v, nil
	case *types.OptimizedResume:
		if v != nil {
			return *v, nil
		}
	}
	return types.OptimizedResume{}, fmt.Errorf("expected OptimizedResume, got %T", data)
}

func asCoverLetter(data any) (types.CoverLetter, error) {
	switch v := data.(type) {
	case types.CoverLetter:
		return v, nil
	case *types.CoverLetter:
		if v != nil {
			return *v, nil
		}
	}
	return types.CoverLetter{}, fmt.Errorf("expected CoverLetter, got %T", data)
}

func asValidation(data any) (types.ResumeValidation, error) {
	switch v := data.(type) {
	case types.ResumeValidation:
		return v, nil
	case *types.ResumeValidation:
		if v != nil {
			return *v, nil
		}
	}
	return types.ResumeValidation{}, fmt.Errorf("expected ResumeValidation, got %T", data)
}

const ruleWidth = 50

func section(output *strings.Builder, title string) {
	output.WriteString(title)
	output.WriteString("\n")
	output.WriteString(strings.Repeat("=", ruleWidth))
	output.WriteString("\n")
}

// ResumeText renders a résumé as plain text with ruled section headers.
func ResumeText(r types.Resume) string {
	var output strings.Builder

	output.WriteString(r.Contact.Name + "\n")
	output.WriteString(fmt.Sprintf("%s | %s | %s\n", r.Contact.Email, r.Contact.Phone, r.Contact.Location))
	if r.Contact.LinkedIn != "" {
		output.WriteString("LinkedIn: " + r.Contact.LinkedIn + "\n")
	}
	if r.Contact.GitHub != "" {
		output.WriteString("GitHub: " + r.Contact.GitHub + "\n")
	}
	if r.Contact.Website != "" {
		output.WriteString("Website: " + r.Contact.Website + "\n")
	}
	output.WriteString("\n")

	section(&output, "PROFESSIONAL SUMMARY")
	output.WriteString(r.Summary + "\n\n")

	section(&output, "PROFESSIONAL EXPERIENCE")
	for _, exp := range r.Experience {
		output.WriteString(fmt.Sprintf("%s | %s\n", exp.Position, exp.Company))
		output.WriteString(fmt.Sprintf("%s | %s - %s\n", exp.Location, exp.StartDate, exp.EndDate))
		for _, desc := range exp.Description {
			output.WriteString("• " + desc + "\n")
		}
		output.WriteString("\n")
	}

	section(&output, "EDUCATION")
	for _, edu := range r.Education {
		output.WriteString(fmt.Sprintf("%s in %s\n", edu.Degree, edu.Field))
		output.WriteString(fmt.Sprintf("%s, %s\n", edu.Institution, edu.Location))
		output.WriteString(fmt.Sprintf("%s - %s", edu.StartDate, edu.EndDate))
		if edu.GPA != "" {
			output.WriteString(" | GPA: " + edu.GPA)
		}
		output.WriteString("\n")
		for _, achievement := range edu.Achievements {
			output.WriteString("• " + achievement + "\n")
		}
		output.WriteString("\n")
	}

	section(&output, "SKILLS")
	for _, skill := range r.Skills {
		output.WriteString(fmt.Sprintf("%s: %s\n", skill.Category, strings.Join(skill.Items, ", ")))
	}

	return output.String()
}

// CoverLetterText renders a cover letter as plain text, one blank line between parts.
func CoverLetterText(c types.CoverLetter) string {
	var output strings.Builder
	output.WriteString(c.Greeting + "\n\n")
	output.WriteString(c.Opening + "\n\n")
	for _, paragraph := range c.Body {
		output.WriteString(paragraph + "\n\n")
	}
	output.WriteString(c.Closing + "\n\n")
	output.WriteString(c.Signature + "\n")
	return output.String()
}

// ResumeTextFormatter handles text formatting for résumés
type ResumeTextFormatter struct{}

func (f *ResumeTextFormatter) Format(data any) (string, error) {
	r, err := asResume(data)
	if err != nil {
		return "", err
	}
	return ResumeText(r), nil
}

func (f *ResumeTextFormatter) SupportedType() string {
	return "Resume"
}

// ResumeMarkdownFormatter handles markdown formatting for résumés
type ResumeMarkdownFormatter struct{}

func (f *ResumeMarkdownFormatter) Format(data any) (string, error) {
	r, err := asResume(data)
	if err != nil {
		return "", err
	}
	return markdown.ToMarkdown(r), nil
}

func (f *ResumeMarkdownFormatter) SupportedType() string {
	return "Resume"
}

// OptimizedTextFormatter prints the optimized résumé followed by the match report
type OptimizedTextFormatter struct{}

func (f *OptimizedTextFormatter) Format(data any) (string, error) {
	o, err := asOptimized(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString(ResumeText(o.Resume))
	output.WriteString("\n")

	section(&output, "OPTIMIZATION REPORT")
	output.WriteString(fmt.Sprintf("Match score: %d%%\n", o.MatchScore))
	if o.PotentialScore != nil {
		output.WriteString(fmt.Sprintf("Potential score: %d%%\n", *o.PotentialScore))
	}
	if len(o.MatchedKeywords) > 0 {
		output.WriteString("Matched keywords: " + strings.Join(o.MatchedKeywords, ", ") + "\n")
	}
	if len(o.Changes) > 0 {
		output.WriteString("\nChanges:\n")
		for _, change := range o.Changes {
			output.WriteString(fmt.Sprintf("• [%s] %s: %s\n", change.Type, change.Section, change.Description))
		}
	}
	if len(o.SkillGaps) > 0 {
		output.WriteString("\nSkill gaps:\n")
		for _, gap := range o.SkillGaps {
			output.WriteString(fmt.Sprintf("• %s (%s): %s\n", gap.Skill, gap.Importance, gap.LearningPath))
		}
	}
	return output.String(), nil
}

func (f *OptimizedTextFormatter) SupportedType() string {
	return "OptimizedResume"
}

// OptimizedMarkdownFormatter prints the optimized résumé followed by the match report
type OptimizedMarkdownFormatter struct{}

func (f *OptimizedMarkdownFormatter) Format(data any) (string, error) {
	o, err := asOptimized(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString(markdown.ToMarkdown(o.Resume))
	output.WriteString("\n\n---\n\n## Optimization Report\n\n")
	output.WriteString(fmt.Sprintf("**Match score:** %d%%\n\n", o.MatchScore))
	if o.PotentialScore != nil {
		output.WriteString(fmt.Sprintf("**Potential score:** %d%%\n\n", *o.PotentialScore))
	}
	if len(o.MatchedKeywords) > 0 {
		output.WriteString("**Matched keywords:** " + strings.Join(o.MatchedKeywords, ", ") + "\n\n")
	}
	if len(o.Changes) > 0 {
		output.WriteString("### Changes\n\n")
		for _, change := range o.Changes {
			output.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", change.Section, change.Type, change.Description))
		}
		output.WriteString("\n")
	}
	if len(o.SkillGaps) > 0 {
		output.WriteString("### Skill Gaps\n\n")
		for _, gap := range o.SkillGaps {
			output.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", gap.Skill, gap.Importance, gap.LearningPath))
		}
	}
	return strings.TrimRight(output.String(), "\n") + "\n", nil
}

func (f *OptimizedMarkdownFormatter) SupportedType() string {
	return "OptimizedResume"
}

// CoverLetterTextFormatter handles text formatting for cover letters
type CoverLetterTextFormatter struct{}

func (f *CoverLetterTextFormatter) Format(data any) (string, error) {
	c, err := asCoverLetter(data)
	if err != nil {
		return "", err
	}
	return CoverLetterText(c), nil
}

func (f *CoverLetterTextFormatter) SupportedType() string {
	return "CoverLetter"
}

// CoverLetterMarkdownFormatter handles markdown formatting for cover letters
type CoverLetterMarkdownFormatter struct{}

func (f *CoverLetterMarkdownFormatter) Format(data any) (string, error) {
	c, err := asCoverLetter(data)
	if err != nil {
		return "", err
	}
	return markdown.CoverLetterToMarkdown(c), nil
}

func (f *CoverLetterMarkdownFormatter) SupportedType() string {
	return "CoverLetter"
}

type validationRow struct {
	label string
	field types.FieldValidation
}

func validationRows(v types.ResumeValidation) []validationRow {
	rows := []validationRow{
		{"Name", v.Contact.Name},
		{"Email", v.Contact.Email},
		{"Phone", v.Contact.Phone},
		{"Location", v.Contact.Location},
		{"Summary", v.Summary},
	}
	for i, exp := range v.Experience {
		rows = append(rows, validationRow{fmt.Sprintf("Experience %d", i+1), exp})
	}
	for i, edu := range v.Education {
		rows = append(rows, validationRow{fmt.Sprintf("Education %d", i+1), edu})
	}
	return append(rows, validationRow{"Skills", v.Skills})
}

// ValidationTextFormatter prints a completeness report
type ValidationTextFormatter struct{}

func (f *ValidationTextFormatter) Format(data any) (string, error) {
	v, err := asValidation(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	section(&output, "RESUME COMPLETENESS")
	output.WriteString(fmt.Sprintf("Overall score: %d%% (%s)\n\n", v.OverallScore, validation.ScoreLabel(v.OverallScore)))
	for _, row := range validationRows(v) {
		output.WriteString(fmt.Sprintf("%s %-14s %s", validation.StatusIcon(row.field.Status), row.label, row.field.Status))
		if row.field.Message != "" {
			output.WriteString(" - " + row.field.Message)
		}
		output.WriteString("\n")
	}
	if validation.ReadyToOptimize(v) {
		output.WriteString("\nReady to optimize.\n")
	} else {
		output.WriteString(fmt.Sprintf("\nReach %d%% to continue.\n", validation.MinReadyScore))
	}
	return output.String(), nil
}

func (f *ValidationTextFormatter) SupportedType() string {
	return "ResumeValidation"
}

// ValidationMarkdownFormatter prints a completeness report as a table
type ValidationMarkdownFormatter struct{}

func (f *ValidationMarkdownFormatter) Format(data any) (string, error) {
	v, err := asValidation(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString("# Résumé Completeness\n\n")
	output.WriteString(fmt.Sprintf("**Overall score:** %d%% (%s)\n\n", v.OverallScore, validation.ScoreLabel(v.OverallScore)))
	output.WriteString("| Field | Status | Notes |\n|---|---|---|\n")
	for _, row := range validationRows(v) {
		output.WriteString(fmt.Sprintf("| %s | %s %s | %s |\n",
			row.label, validation.StatusIcon(row.field.Status), row.field.Status, row.field.Message))
	}
	return output.String(), nil
}

func (f *ValidationMarkdownFormatter) SupportedType() string {
	return "ResumeValidation"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()

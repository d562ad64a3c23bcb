// Package validation scores how complete a résumé is.
//
// Every function here is pure: the same input always produces the same
// FieldValidation, and nothing is cached between calls.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"resumeflow/internal/types"
)

// Minimum lengths used when scoring a whole résumé.
const (
	MinNameLength     = 2
	MinLocationLength = 2
	MinSummaryLength  = 50
	MinSkillItems     = 1
	MinPhoneDigits    = 10

	// DefaultMinTextLength is used by callers without a field-specific threshold.
	DefaultMinTextLength = 3

	// MinReadyScore is the overall score a résumé needs before it can be optimized.
	MinReadyScore = 50
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateTextField reports empty for blank text, partial when the trimmed text
// is shorter than minLength characters, and complete otherwise.
func ValidateTextField(text string, minLength int) types.FieldValidation {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return types.FieldValidation{Status: types.StatusEmpty, Message: "This field is empty"}
	}
	if utf8.RuneCountInString(trimmed) < minLength {
		return types.FieldValidation{
			Status:  types.StatusPartial,
			Message: fmt.Sprintf("Too short (minimum %d characters)", minLength),
		}
	}
	return types.FieldValidation{Status: types.StatusComplete}
}

// ValidateEmail matches the untrimmed value, so surrounding whitespace is a
// format warning.
func ValidateEmail(email string) types.FieldValidation {
	if strings.TrimSpace(email) == "" {
		return types.FieldValidation{Status: types.StatusEmpty, Message: "Email is required"}
	}
	if !emailPattern.MatchString(email) {
		return types.FieldValidation{Status: types.StatusWarning, Message: "Email format may be invalid"}
	}
	return types.FieldValidation{Status: types.StatusComplete}
}

// ValidatePhone counts digits only, so any punctuation or spacing is accepted.
func ValidatePhone(phone string) types.FieldValidation {
	if strings.TrimSpace(phone) == "" {
		return types.FieldValidation{Status: types.StatusEmpty, Message: "Phone is required"}
	}
	if countDigits(phone) < MinPhoneDigits {
		return types.FieldValidation{Status: types.StatusWarning, Message: "Phone number seems too short"}
	}
	return types.FieldValidation{Status: types.StatusComplete}
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// ValidateArrayField scores a list by its length.
func ValidateArrayField(count, minItems int) types.FieldValidation {
	if count == 0 {
		return types.FieldValidation{Status: types.StatusEmpty, Message: "No items found"}
	}
	if count < minItems {
		return types.FieldValidation{
			Status:  types.StatusPartial,
			Message: fmt.Sprintf("Only %d item(s) found", count),
		}
	}
	return types.FieldValidation{Status: types.StatusComplete}
}

// ValidateExperience checks company, position, description, start and end date.
// Three or more missing sub-fields make the entry empty.
func ValidateExperience(exp types.Experience) types.FieldValidation {
	var issues []string
	if blank(exp.Company) {
		issues = append(issues, "Company name missing")
	}
	if blank(exp.Position) {
		issues = append(issues, "Position missing")
	}
	if !hasContent(exp.Description) {
		issues = append(issues, "No description bullets")
	}
	if blank(exp.StartDate) {
		issues = append(issues, "Start date missing")
	}
	if blank(exp.EndDate) {
		issues = append(issues, "End date missing")
	}
	return entryStatus(issues, 3)
}

// ValidateEducation checks institution, degree and field.
// Two or more missing sub-fields make the entry empty.
func ValidateEducation(edu types.Education) types.FieldValidation {
	var issues []string
	if blank(edu.Institution) {
		issues = append(issues, "Institution missing")
	}
	if blank(edu.Degree) {
		issues = append(issues, "Degree missing")
	}
	if blank(edu.Field) {
		issues = append(issues, "Field of study missing")
	}
	return entryStatus(issues, 2)
}

func entryStatus(issues []string, emptyAt int) types.FieldValidation {
	switch {
	case len(issues) == 0:
		return types.FieldValidation{Status: types.StatusComplete}
	case len(issues) >= emptyAt:
		return types.FieldValidation{Status: types.StatusEmpty, Message: strings.Join(issues, ", ")}
	default:
		return types.FieldValidation{Status: types.StatusWarning, Message: strings.Join(issues, ", ")}
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func hasContent(items []string) bool {
	for _, item := range items {
		if !blank(item) {
			return true
		}
	}
	return false
}

// ValidateResume scores every section and computes the weighted overall score.
func ValidateResume(r types.Resume) types.ResumeValidation {
	v := types.ResumeValidation{
		Contact: types.ContactValidation{
			Name:     ValidateTextField(r.Contact.Name, MinNameLength),
			Email:    ValidateEmail(r.Contact.Email),
			Phone:    ValidatePhone(r.Contact.Phone),
			Location: ValidateTextField(r.Contact.Location, MinLocationLength),
		},
		Summary:    ValidateTextField(r.Summary, MinSummaryLength),
		Experience: make([]types.FieldValidation, len(r.Experience)),
		Education:  make([]types.FieldValidation, len(r.Education)),
		Skills:     ValidateArrayField(len(r.Skills), MinSkillItems),
	}
	for i, exp := range r.Experience {
		v.Experience[i] = ValidateExperience(exp)
	}
	for i, edu := range r.Education {
		v.Education[i] = ValidateEducation(edu)
	}
	v.OverallScore = score(v)
	return v
}

const maxPoints = 100.0

func score(v types.ResumeValidation) int {
	total := 0.0
	for _, f := range []types.FieldValidation{v.Contact.Name, v.Contact.Email, v.Contact.Phone, v.Contact.Location} {
		total += statusPoints(f.Status, 10)
	}
	total += statusPoints(v.Summary.Status, 20)
	total += proportionalPoints(v.Experience, 20)
	total += proportionalPoints(v.Education, 10)
	total += statusPoints(v.Skills.Status, 10)

	return int(math.Round(total / maxPoints * 100))
}

// statusPoints awards full, 70%, 50% or no weight for complete, warning, partial and empty.
func statusPoints(status types.FieldStatus, weight int) float64 {
	switch status {
	case types.StatusComplete:
		return float64(weight)
	case types.StatusWarning:
		return float64(weight * 7 / 10)
	case types.StatusPartial:
		return float64(weight / 2)
	default:
		return 0
	}
}

func proportionalPoints(entries []types.FieldValidation, weight float64) float64 {
	if len(entries) == 0 {
		return 0
	}
	complete := 0
	for _, e := range entries {
		if e.Status == types.StatusComplete {
			complete++
		}
	}
	return math.Min(weight, float64(complete)/float64(len(entries))*weight)
}

// ReadyToOptimize reports whether the résumé has reached the minimum score.
func ReadyToOptimize(v types.ResumeValidation) bool {
	return v.OverallScore >= MinReadyScore
}

// ScoreLabel gives a short description of an overall score.
func ScoreLabel(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	default:
		return "Needs Work"
	}
}

// StatusIcon returns a single-character marker for text output.
func StatusIcon(status types.FieldStatus) string {
	switch status {
	case types.StatusComplete:
		return "✓"
	case types.StatusWarning:
		return "⚠"
	case types.StatusPartial:
		return "◐"
	default:
		return "✗"
	}
}

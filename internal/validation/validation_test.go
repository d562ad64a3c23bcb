package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"resumeflow/internal/types"
)

func completeExperience() types.Experience {
	return types.Experience{
		ID:          "exp-1",
		Company:     "Acme",
		Position:    "Engineer",
		StartDate:   "2020",
		EndDate:     "Present",
		Description: []string{"Built the billing pipeline"},
	}
}

func completeEducation() types.Education {
	return types.Education{ID: "edu-1", Institution: "State University", Degree: "BSc", Field: "Computer Science"}
}

func completeResume() types.Resume {
	return types.Resume{
		Contact: types.ContactInfo{
			Name:     "Alex Johnson",
			Email:    "alex@x.com",
			Phone:    "5551234567",
			Location: "SF",
		},
		Summary:    strings.Repeat("Seasoned engineer. ", 4),
		Experience: []types.Experience{completeExperience()},
		Education:  []types.Education{completeEducation()},
		Skills:     []types.Skill{{Category: "Languages", Items: []string{"Go"}}},
	}
}

func TestValidateTextField(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		minLength int
		expected  types.FieldStatus
	}{
		{"empty string", "", 3, types.StatusEmpty},
		{"whitespace only", "   \t\n", 3, types.StatusEmpty},
		{"one below minimum", "ab", 3, types.StatusPartial},
		{"padded still short", "  ab  ", 3, types.StatusPartial},
		{"exactly minimum", "abc", 3, types.StatusComplete},
		{"above minimum", "abcdef", 3, types.StatusComplete},
		{"multibyte counted as characters", "żółw", 4, types.StatusComplete},
		{"zero minimum", "a", 0, types.StatusComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateTextField(tt.text, tt.minLength)
			if result.Status != tt.expected {
				t.Errorf("Expected status %s, got %s", tt.expected, result.Status)
			}
		})
	}
}

func TestValidateTextFieldMessages(t *testing.T) {
	assert.Equal(t, "This field is empty", ValidateTextField("", 3).Message)
	assert.Equal(t, "Too short (minimum 50 characters)", ValidateTextField("short", 50).Message)
	assert.Empty(t, ValidateTextField("long enough", 3).Message)
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email    string
		expected types.FieldStatus
	}{
		{"a@b.com", types.StatusComplete},
		{" a@b.com", types.StatusWarning},
		{"  a@b.com  ", types.StatusWarning},
		{"first.last+tag@sub.example.org", types.StatusComplete},
		{"not-an-email", types.StatusWarning},
		{"missing@tld", types.StatusWarning},
		{"two words@b.com", types.StatusWarning},
		{"", types.StatusEmpty},
		{"   ", types.StatusEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := ValidateEmail(tt.email).Status; got != tt.expected {
				t.Errorf("ValidateEmail(%q): expected %s, got %s", tt.email, tt.expected, got)
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone    string
		expected types.FieldStatus
	}{
		{"5551234567", types.StatusComplete},
		{"(555) 123-4567", types.StatusComplete},
		{"+1 555 123 4567", types.StatusComplete},
		{"555-1234", types.StatusWarning},
		{"555123456", types.StatusWarning},
		{"call me", types.StatusWarning},
		{"", types.StatusEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			if got := ValidatePhone(tt.phone).Status; got != tt.expected {
				t.Errorf("ValidatePhone(%q): expected %s, got %s", tt.phone, tt.expected, got)
			}
		})
	}
}

func TestValidateArrayField(t *testing.T) {
	assert.Equal(t, types.StatusEmpty, ValidateArrayField(0, 1).Status)
	assert.Equal(t, "No items found", ValidateArrayField(0, 1).Message)
	assert.Equal(t, types.StatusPartial, ValidateArrayField(2, 3).Status)
	assert.Equal(t, "Only 2 item(s) found", ValidateArrayField(2, 3).Message)
	assert.Equal(t, types.StatusComplete, ValidateArrayField(3, 3).Status)
}

func TestValidateExperience(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*types.Experience)
		expected types.FieldStatus
		message  string
	}{
		{"all fields present", func(*types.Experience) {}, types.StatusComplete, ""},
		{"missing end date only", func(e *types.Experience) { e.EndDate = "" }, types.StatusWarning, "End date missing"},
		{
			"missing both dates",
			func(e *types.Experience) { e.StartDate, e.EndDate = "", "" },
			types.StatusWarning,
			"Start date missing, End date missing",
		},
		{
			"missing company position and description",
			func(e *types.Experience) { e.Company, e.Position, e.Description = "", "", nil },
			types.StatusEmpty,
			"Company name missing, Position missing, No description bullets",
		},
		{
			"blank description bullets count as missing",
			func(e *types.Experience) { e.Description = []string{"  ", ""} },
			types.StatusWarning,
			"No description bullets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := completeExperience()
			tt.mutate(&exp)
			result := ValidateExperience(exp)
			assert.Equal(t, tt.expected, result.Status)
			assert.Equal(t, tt.message, result.Message)
		})
	}
}

func TestValidateEducation(t *testing.T) {
	edu := completeEducation()
	assert.Equal(t, types.StatusComplete, ValidateEducation(edu).Status)

	edu.Field = ""
	assert.Equal(t, types.StatusWarning, ValidateEducation(edu).Status)

	edu.Degree = ""
	result := ValidateEducation(edu)
	assert.Equal(t, types.StatusEmpty, result.Status)
	assert.Equal(t, "Degree missing, Field of study missing", result.Message)
}

func TestValidateResumeScore(t *testing.T) {
	tests := []struct {
		name     string
		resume   func() types.Resume
		expected int
	}{
		{"complete resume", completeResume, 100},
		{"empty resume", func() types.Resume { return types.Resume{} }, 0},
		{
			"warnings on email and phone",
			func() types.Resume {
				r := completeResume()
				r.Contact.Email = "nope"
				r.Contact.Phone = "555"
				return r
			},
			94,
		},
		{
			"short summary and no skills",
			func() types.Resume {
				r := completeResume()
				r.Summary = "Engineer."
				r.Skills = nil
				return r
			},
			80,
		},
		{
			"half of experience entries complete",
			func() types.Resume {
				r := completeResume()
				r.Experience = append(r.Experience, types.Experience{ID: "exp-2", Company: "Globex"})
				return r
			},
			90,
		},
		{
			"contact only",
			func() types.Resume {
				r := completeResume()
				r.Summary, r.Experience, r.Education, r.Skills = "", nil, nil, nil
				return r
			},
			40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateResume(tt.resume())
			if v.OverallScore != tt.expected {
				t.Errorf("Expected score %d, got %d", tt.expected, v.OverallScore)
			}
		})
	}
}

func TestValidateResumeIsDeterministic(t *testing.T) {
	r := completeResume()
	r.Contact.Phone = "555-1234"
	r.Education = append(r.Education, types.Education{ID: "edu-2"})

	first := ValidateResume(r)
	second := ValidateResume(r)
	assert.Equal(t, first, second)
	assert.Len(t, first.Education, 2)
}

func TestReadyToOptimize(t *testing.T) {
	v := ValidateResume(completeResume())
	assert.GreaterOrEqual(t, v.OverallScore, MinReadyScore)
	assert.True(t, ReadyToOptimize(v))

	assert.False(t, ReadyToOptimize(types.ResumeValidation{OverallScore: 49}))
	assert.True(t, ReadyToOptimize(types.ResumeValidation{OverallScore: 50}))
}

func TestScoreLabel(t *testing.T) {
	assert.Equal(t, "Excellent", ScoreLabel(80))
	assert.Equal(t, "Good", ScoreLabel(79))
	assert.Equal(t, "Good", ScoreLabel(60))
	assert.Equal(t, "Needs Work", ScoreLabel(59))
}

func BenchmarkValidateResume(b *testing.B) {
	r := completeResume()
	for b.Loop() {
		_ = ValidateResume(r)
	}
}

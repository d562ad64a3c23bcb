package types

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ContactInfo holds the candidate's contact details
type ContactInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Website  string `json:"website,omitempty"`
}

// Experience is a single work history entry
type Experience struct {
	ID          string   `json:"id"`
	Company     string   `json:"company"`
	Position    string   `json:"position"`
	Location    string   `json:"location"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	Description []string `json:"description"`
	Highlights  []string `json:"highlights,omitempty"`
}

// Education is a single education entry
type Education struct {
	ID           string   `json:"id"`
	Institution  string   `json:"institution"`
	Degree       string   `json:"degree"`
	Field        string   `json:"field"`
	Location     string   `json:"location"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	GPA          string   `json:"gpa,omitempty"`
	Achievements []string `json:"achievements,omitempty"`
}

// Skill is a named category of skill items
type Skill struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// Resume is the structured résumé document
type Resume struct {
	Contact    ContactInfo  `json:"contact"`
	Summary    string       `json:"summary"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Skills     []Skill      `json:"skills"`
}

const (
	experienceIDPrefix = "exp-"
	educationIDPrefix  = "edu-"
)

// NewExperienceID returns a collision-resistant identifier for an experience entry.
func NewExperienceID() string {
	return experienceIDPrefix + uuid.NewString()
}

// NewEducationID returns a collision-resistant identifier for an education entry.
func NewEducationID() string {
	return educationIDPrefix + uuid.NewString()
}

// NewExperience returns an empty experience entry with a fresh id.
func NewExperience() Experience {
	return Experience{ID: NewExperienceID(), Description: []string{}}
}

// NewEducation returns an empty education entry with a fresh id.
func NewEducation() Education {
	return Education{ID: NewEducationID()}
}

// EnsureIDs assigns ids to entries that arrived without one and normalizes
// the résumé.
func (r *Resume) EnsureIDs() {
	r.Normalize()
	for i := range r.Experience {
		if r.Experience[i].ID == "" {
			r.Experience[i].ID = NewExperienceID()
		}
	}
	for i := range r.Education {
		if r.Education[i].ID == "" {
			r.Education[i].ID = NewEducationID()
		}
	}
}

// Normalize replaces missing lists with empty ones. The backend rejects null
// where it expects an array.
func (r *Resume) Normalize() {
	if r.Experience == nil {
		r.Experience = []Experience{}
	}
	if r.Education == nil {
		r.Education = []Education{}
	}
	if r.Skills == nil {
		r.Skills = []Skill{}
	}
	for i := range r.Experience {
		if r.Experience[i].Description == nil {
			r.Experience[i].Description = []string{}
		}
	}
	for i := range r.Skills {
		if r.Skills[i].Items == nil {
			r.Skills[i].Items = []string{}
		}
	}
}

// Clone returns a deep copy of the résumé. Lists the wire format requires
// (experience descriptions, skill items) come back empty rather than nil so
// they never marshal as null.
func (r Resume) Clone() Resume {
	out := r
	out.Experience = make([]Experience, len(r.Experience))
	for i, e := range r.Experience {
		e.Description = cloneList(e.Description)
		e.Highlights = slices.Clone(e.Highlights)
		out.Experience[i] = e
	}
	out.Education = make([]Education, len(r.Education))
	for i, e := range r.Education {
		e.Achievements = slices.Clone(e.Achievements)
		out.Education[i] = e
	}
	out.Skills = make([]Skill, len(r.Skills))
	for i, s := range r.Skills {
		s.Items = cloneList(s.Items)
		out.Skills[i] = s
	}
	return out
}

func cloneList(items []string) []string {
	if items == nil {
		return []string{}
	}
	return slices.Clone(items)
}

// RemoveExperience drops the entry with the given id. Other ids are untouched.
func (r *Resume) RemoveExperience(id string) bool {
	n := len(r.Experience)
	r.Experience = slices.DeleteFunc(r.Experience, func(e Experience) bool { return e.ID == id })
	return len(r.Experience) != n
}

// RemoveEducation drops the entry with the given id. Other ids are untouched.
func (r *Resume) RemoveEducation(id string) bool {
	n := len(r.Education)
	r.Education = slices.DeleteFunc(r.Education, func(e Education) bool { return e.ID == id })
	return len(r.Education) != n
}

// MergeSkills adds items under category. An existing category with the same
// name (case-insensitive) receives the items; otherwise a new category is appended.
func (r *Resume) MergeSkills(category string, items ...string) {
	category = strings.TrimSpace(category)
	if category == "" || len(items) == 0 {
		return
	}
	for i := range r.Skills {
		if strings.EqualFold(r.Skills[i].Category, category) {
			r.Skills[i].Items = append(r.Skills[i].Items, items...)
			return
		}
	}
	r.Skills = append(r.Skills, Skill{Category: category, Items: slices.Clone(items)})
}

// ChangeType describes how a section was altered by optimization
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeModified  ChangeType = "modified"
	ChangeReordered ChangeType = "reordered"
)

// Confidence tags how well a change is backed by the original résumé
type Confidence string

const (
	ConfidenceVerified  Confidence = "verified"
	ConfidenceInferred  Confidence = "inferred"
	ConfidenceSuggested Confidence = "suggested"
)

// ResumeChange describes a single change made during optimization
type ResumeChange struct {
	Section     string     `json:"section"`
	Type        ChangeType `json:"type"`
	Description string     `json:"description"`
	Confidence  Confidence `json:"confidence,omitempty"`
}

// SkillGap is a skill the job asks for that the résumé lacks
type SkillGap struct {
	Skill         string `json:"skill"`
	Importance    string `json:"importance"` // "critical", "important" or "nice-to-have"
	LearningPath  string `json:"learningPath"`
	EstimatedTime string `json:"estimatedTime,omitempty"`
}

// OptimizedResume is a résumé tailored to a job description
type OptimizedResume struct {
	Resume
	Changes         []ResumeChange `json:"changes"`
	MatchScore      int            `json:"matchScore"`
	MatchedKeywords []string       `json:"matchedKeywords"`
	PotentialScore  *int           `json:"potentialScore,omitempty"`
	SkillGaps       []SkillGap     `json:"skillGaps,omitempty"`
}

// CoverLetter is a generated cover letter
type CoverLetter struct {
	Greeting  string   `json:"greeting"`
	Opening   string   `json:"opening"`
	Body      []string `json:"body"`
	Closing   string   `json:"closing"`
	Signature string   `json:"signature"`
}

// Text assembles the letter as plain text with blank lines between parts.
func (c CoverLetter) Text() string {
	parts := make([]string, 0, len(c.Body)+4)
	parts = append(parts, c.Greeting, c.Opening)
	parts = append(parts, c.Body...)
	parts = append(parts, c.Closing, c.Signature)
	return strings.Join(parts, "\n\n")
}

// ParseResult is the payload of a successful parse
type ParseResult struct {
	Resume        Resume   `json:"resume"`
	ExtractedText string   `json:"extractedText"`
	Warnings      []string `json:"warnings"`
}

// OptimizeResult is the payload of a successful optimization
type OptimizeResult struct {
	OptimizedResume OptimizedResume `json:"optimizedResume"`
	CoverLetter     CoverLetter     `json:"coverLetter"`
	JobKeywords     []string        `json:"jobKeywords"`
}

// Upload is a résumé file selected for parsing
type Upload struct {
	FileName string
	MimeType string
	Content  []byte
}

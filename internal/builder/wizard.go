package builder

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"resumeflow/internal/draft"
	"resumeflow/internal/errors"
	"resumeflow/internal/types"
	"resumeflow/internal/validation"
)

// Step is one page of the builder
type Step int

const (
	StepContact Step = iota
	StepSummary
	StepExperience
	StepEducation
	StepSkills
)

// StepCount is the number of builder steps
const StepCount = int(StepSkills) + 1

var stepNames = [...]string{"contact", "summary", "experience", "education", "skills"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

// Title is the heading shown for the step.
func (s Step) Title() string {
	switch s {
	case StepContact:
		return "Contact Information"
	case StepSummary:
		return "Professional Summary"
	case StepExperience:
		return "Work Experience"
	case StepEducation:
		return "Education"
	case StepSkills:
		return "Skills"
	}
	return ""
}

// Wizard is the five step résumé builder. Every edit is persisted to the
// draft store unless the wizard was seeded from an existing résumé.
type Wizard struct {
	mu     sync.Mutex
	step   Step
	resume types.Resume

	store  *draft.Store
	key    string
	logger *errors.Logger
}

func emptyResume() types.Resume {
	return types.Resume{
		Experience: []types.Experience{},
		Education:  []types.Education{},
		Skills:     []types.Skill{},
	}
}

// New starts a wizard backed by the draft under key, resuming a saved draft if one exists.
func New(store *draft.Store, key string, logger *errors.Logger) (*Wizard, error) {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	w := &Wizard{resume: emptyResume(), store: store, key: key, logger: logger}
	if store == nil {
		return w, nil
	}

	saved, err := store.Load(key)
	if err != nil {
		// A corrupt draft should not block the builder.
		if errors.TypeOf(err) != errors.ErrorTypeValidation {
			return nil, err
		}
		logger.LogError(err, "Discarding unreadable draft", "key", key)
		_ = store.Clear(key)
	}
	if saved != nil {
		w.resume = normalize(*saved)
		logger.Info("Resumed builder draft", "key", key)
	}
	return w, nil
}

// NewFromResume starts a wizard seeded from r. It never touches the draft cache.
func NewFromResume(r types.Resume, logger *errors.Logger) *Wizard {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Wizard{resume: normalize(r.Clone()), logger: logger}
}

func normalize(r types.Resume) types.Resume {
	if r.Experience == nil {
		r.Experience = []types.Experience{}
	}
	if r.Education == nil {
		r.Education = []types.Education{}
	}
	if r.Skills == nil {
		r.Skills = []types.Skill{}
	}
	r.EnsureIDs()
	return r
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Resume returns a copy of the résumé being built.
func (w *Wizard) Resume() types.Resume {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resume.Clone()
}

// CanProceed reports whether the current step is complete.
func (w *Wizard) CanProceed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return stepComplete(w.step, w.resume)
}

// Missing describes what the current step still needs, or "" if nothing.
func (w *Wizard) Missing() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return missing(w.step, w.resume)
}

func stepComplete(step Step, r types.Resume) bool {
	return missing(step, r) == ""
}

func missing(step Step, r types.Resume) string {
	switch step {
	case StepContact:
		var fields []string
		if strings.TrimSpace(r.Contact.Name) == "" {
			fields = append(fields, "name")
		}
		if strings.TrimSpace(r.Contact.Email) == "" {
			fields = append(fields, "email")
		}
		if strings.TrimSpace(r.Contact.Phone) == "" {
			fields = append(fields, "phone")
		}
		if len(fields) > 0 {
			return "Please fill in " + strings.Join(fields, ", ")
		}
	case StepSummary:
		if utf8.RuneCountInString(strings.TrimSpace(r.Summary)) < validation.MinSummaryLength {
			return fmt.Sprintf("Summary should be at least %d characters", validation.MinSummaryLength)
		}
	case StepExperience:
		if len(r.Experience) == 0 {
			return "Add at least one work experience"
		}
	case StepEducation:
		if len(r.Education) == 0 {
			return "Add at least one education entry"
		}
	case StepSkills:
		if len(r.Skills) == 0 {
			return "Add at least one skill category"
		}
	}
	return ""
}

// Next advances to the following step if the current one is complete.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if reason := missing(w.step, w.resume); reason != "" {
		return errors.NewUserInputError(errors.ErrCodeIncompleteStep, reason, nil).
			WithContext("step", w.step.String())
	}
	if w.step == StepSkills {
		return errors.NewUserInputError(errors.ErrCodeInvalidStage, "Already at the last step", nil)
	}
	w.step++
	return nil
}

// Back returns to the previous step. It is a no-op on the first step.
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepContact {
		w.step--
	}
}

// Update applies fn to the résumé and persists the draft.
func (w *Wizard) Update(fn func(*types.Resume)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.resume)
	w.resume = normalize(w.resume)
	return w.persist()
}

// AddExperience appends an empty experience entry and returns its id.
func (w *Wizard) AddExperience() (string, error) {
	exp := types.NewExperience()
	err := w.Update(func(r *types.Resume) {
		r.Experience = append(r.Experience, exp)
	})
	return exp.ID, err
}

// UpdateExperience edits the experience entry with the given id.
func (w *Wizard) UpdateExperience(id string, fn func(*types.Experience)) error {
	found := false
	err := w.Update(func(r *types.Resume) {
		for i := range r.Experience {
			if r.Experience[i].ID == id {
				fn(&r.Experience[i])
				found = true
				return
			}
		}
	})
	if !found {
		return errors.NewUserInputError(errors.ErrCodeInvalidRequest, "Experience entry not found", nil).
			WithContext("id", id)
	}
	return err
}

// RemoveExperience deletes the experience entry with the given id.
func (w *Wizard) RemoveExperience(id string) (bool, error) {
	removed := false
	err := w.Update(func(r *types.Resume) {
		removed = r.RemoveExperience(id)
	})
	return removed, err
}

// AddEducation appends an empty education entry and returns its id.
func (w *Wizard) AddEducation() (string, error) {
	edu := types.NewEducation()
	err := w.Update(func(r *types.Resume) {
		r.Education = append(r.Education, edu)
	})
	return edu.ID, err
}

// UpdateEducation edits the education entry with the given id.
func (w *Wizard) UpdateEducation(id string, fn func(*types.Education)) error {
	found := false
	err := w.Update(func(r *types.Resume) {
		for i := range r.Education {
			if r.Education[i].ID == id {
				fn(&r.Education[i])
				found = true
				return
			}
		}
	})
	if !found {
		return errors.NewUserInputError(errors.ErrCodeInvalidRequest, "Education entry not found", nil).
			WithContext("id", id)
	}
	return err
}

// RemoveEducation deletes the education entry with the given id.
func (w *Wizard) RemoveEducation(id string) (bool, error) {
	removed := false
	err := w.Update(func(r *types.Resume) {
		removed = r.RemoveEducation(id)
	})
	return removed, err
}

// AddSkills merges items into category, creating it if needed.
func (w *Wizard) AddSkills(category string, items ...string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return errors.NewUserInputError(errors.ErrCodeInvalidRequest, "Skill category cannot be empty", nil)
	}
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	return w.Update(func(r *types.Resume) {
		if len(cleaned) == 0 {
			for _, s := range r.Skills {
				if strings.EqualFold(s.Category, category) {
					return
				}
			}
			r.Skills = append(r.Skills, types.Skill{Category: category, Items: []string{}})
			return
		}
		r.MergeSkills(category, cleaned...)
	})
}

// RemoveSkillCategory drops the first category with the given name.
func (w *Wizard) RemoveSkillCategory(category string) (bool, error) {
	removed := false
	err := w.Update(func(r *types.Resume) {
		for i, s := range r.Skills {
			if strings.EqualFold(s.Category, category) {
				r.Skills = append(r.Skills[:i], r.Skills[i+1:]...)
				removed = true
				return
			}
		}
	})
	return removed, err
}

// Complete returns the finished résumé once every step is complete and clears the draft.
func (w *Wizard) Complete() (types.Resume, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for step := StepContact; step <= StepSkills; step++ {
		if reason := missing(step, w.resume); reason != "" {
			w.step = step
			return types.Resume{}, errors.NewUserInputError(errors.ErrCodeIncompleteStep, reason, nil).
				WithContext("step", step.String())
		}
	}
	w.clearDraft()
	return w.resume.Clone(), nil
}

// SkipToReview hands over the current data without checking completeness.
func (w *Wizard) SkipToReview() types.Resume {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearDraft()
	return w.resume.Clone()
}

// Cancel abandons the builder and clears the draft.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearDraft()
	w.resume = emptyResume()
	w.step = StepContact
}

// Replace swaps in a draft written elsewhere, keeping the current step.
func (w *Wizard) Replace(r *types.Resume) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r == nil {
		return
	}
	w.resume = normalize(r.Clone())
}

// Persistent reports whether edits are written to the draft cache.
func (w *Wizard) Persistent() bool {
	return w.store != nil
}

func (w *Wizard) persist() error {
	if w.store == nil {
		return nil
	}
	if err := w.store.Save(w.key, w.resume); err != nil {
		w.logger.LogError(err, "Failed to save builder draft", "key", w.key)
		return err
	}
	return nil
}

func (w *Wizard) clearDraft() {
	if w.store == nil {
		return
	}
	if err := w.store.Clear(w.key); err != nil {
		w.logger.LogError(err, "Failed to clear builder draft", "key", w.key)
	}
}

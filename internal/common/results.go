package common

import (
	"encoding/json"
	"fmt"

	"resumeflow/internal/errors"
	"resumeflow/internal/formatters"
	"resumeflow/internal/types"
)

// ResultBundle is the saved outcome of an optimization. The original résumé
// is the verified one that was sent to the backend.
type ResultBundle struct {
	OriginalResume  types.Resume          `json:"originalResume"`
	OptimizedResume types.OptimizedResume `json:"optimizedResume"`
	CoverLetter     types.CoverLetter     `json:"coverLetter"`
	JobKeywords     []string              `json:"jobKeywords"`
}

// Export returns the downloadable documents of the bundle.
func (b ResultBundle) Export() formatters.Export {
	return formatters.Export{
		Original:    b.OriginalResume,
		Optimized:   b.OptimizedResume.Resume,
		CoverLetter: b.CoverLetter,
	}
}

// LoadResultBundle reads a bundle previously written as JSON.
func (fp *FileProcessor) LoadResultBundle(filename string) (ResultBundle, error) {
	content, err := fp.ReadBytes(filename)
	if err != nil {
		return ResultBundle{}, err
	}
	var bundle ResultBundle
	if err := json.Unmarshal(content, &bundle); err != nil {
		return ResultBundle{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s is not a saved optimization result", filename), err)
	}
	if bundle.OptimizedResume.Contact.Name == "" && bundle.OriginalResume.Contact.Name == "" {
		return ResultBundle{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s does not contain an optimized résumé", filename), nil)
	}
	return bundle, nil
}

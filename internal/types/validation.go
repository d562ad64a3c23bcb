package types

// FieldStatus is the completeness status of a single field
type FieldStatus string

const (
	StatusEmpty    FieldStatus = "empty"
	StatusPartial  FieldStatus = "partial"
	StatusComplete FieldStatus = "complete"
	StatusWarning  FieldStatus = "warning"
)

// FieldValidation is the status of a field plus an optional message
type FieldValidation struct {
	Status  FieldStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// ContactValidation groups validation of the contact fields
type ContactValidation struct {
	Name     FieldValidation `json:"name"`
	Email    FieldValidation `json:"email"`
	Phone    FieldValidation `json:"phone"`
	Location FieldValidation `json:"location"`
}

// ResumeValidation is a full validation report for a résumé
type ResumeValidation struct {
	Contact      ContactValidation `json:"contact"`
	Summary      FieldValidation   `json:"summary"`
	Experience   []FieldValidation `json:"experience"`
	Education    []FieldValidation `json:"education"`
	Skills       FieldValidation   `json:"skills"`
	OverallScore int               `json:"overallScore"`
}

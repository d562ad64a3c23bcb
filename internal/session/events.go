package session

import (
	"time"

	"resumeflow/internal/types"
)

// Stage is a step of the session flow
type Stage string

const (
	StageLanding        Stage = "landing"
	StageBuilder        Stage = "builder"
	StageParsing        Stage = "parsing"
	StageReview         Stage = "review"
	StageJobDescription Stage = "job-description"
	StageProcessing     Stage = "processing"
	StageResults        Stage = "results"
)

// Level is the severity of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient message for the user
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Progress is the latest streamed progress of the running operation
type Progress struct {
	Stage   string `json:"stage,omitempty"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// EventKind tags an Event
type EventKind string

const (
	EventState        EventKind = "state"
	EventProgress     EventKind = "progress"
	EventNotification EventKind = "notification"
)

// Event is published to subscribers on every observable change
type Event struct {
	Kind         EventKind     `json:"kind"`
	State        *Snapshot     `json:"state,omitempty"`
	Progress     *Progress     `json:"progress,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// Snapshot is a copy of the session state
type Snapshot struct {
	Stage          Stage                   `json:"stage"`
	FileName       string                  `json:"fileName,omitempty"`
	OriginalResume *types.Resume           `json:"originalResume,omitempty"`
	Resume         *types.Resume           `json:"resume,omitempty"`
	Validation     *types.ResumeValidation `json:"validation,omitempty"`
	ScoreLabel     string                  `json:"scoreLabel,omitempty"`
	CanContinue    bool                    `json:"canContinue"`
	ExtractedText  string                  `json:"extractedText,omitempty"`
	Warnings       []string                `json:"warnings,omitempty"`
	JobDescription string                  `json:"jobDescription,omitempty"`
	JobTitle       string                  `json:"jobTitle,omitempty"`
	Company        string                  `json:"company,omitempty"`
	Optimized      *types.OptimizedResume  `json:"optimizedResume,omitempty"`
	CoverLetter    *types.CoverLetter      `json:"coverLetter,omitempty"`
	JobKeywords    []string                `json:"jobKeywords,omitempty"`
	Progress       Progress                `json:"progress"`
	Builder        *BuilderState           `json:"builder,omitempty"`
}

// BuilderState describes the wizard while the session is in the builder
type BuilderState struct {
	Step       string       `json:"step"`
	StepIndex  int          `json:"stepIndex"`
	StepCount  int          `json:"stepCount"`
	Title      string       `json:"title"`
	CanProceed bool         `json:"canProceed"`
	Missing    string       `json:"missing,omitempty"`
	Resume     types.Resume `json:"resume"`
}

// OptimizeInput is what the user enters on the job description stage
type OptimizeInput struct {
	JobDescription string `json:"jobDescription"`
	JobTitle       string `json:"jobTitle,omitempty"`
	Company        string `json:"company,omitempty"`
}

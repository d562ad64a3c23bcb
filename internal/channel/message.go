package channel

import (
	"encoding/json"
	"math"

	"resumeflow/internal/errors"
	"resumeflow/internal/types"
)

// MessageType tags an inbound message
type MessageType string

const (
	TypeProgress MessageType = "progress"
	TypeResult   MessageType = "result"
	TypeError    MessageType = "error"
	// TypeMalformed marks a frame that could not be decoded.
	TypeMalformed MessageType = "malformed"
)

// Terminal reports whether the message ends the current request.
func (t MessageType) Terminal() bool {
	return t == TypeResult || t == TypeError
}

// Message is one inbound message from the backend
type Message struct {
	Type     MessageType     `json:"type"`
	Stage    string          `json:"stage,omitempty"`
	Progress int             `json:"progress"`
	Message  string          `json:"message,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Err      error           `json:"-"`
}

// OptimizeRequest is the input of an optimize request
type OptimizeRequest struct {
	Resume         types.Resume
	JobDescription string
	JobTitle       string
	Company        string
}

const (
	defaultJobTitle = "the position"
	defaultCompany  = "your company"
)

type parseFrame struct {
	Type        string `json:"type"`
	FileContent string `json:"fileContent"`
	FileType    string `json:"fileType"`
	FileName    string `json:"fileName"`
}

type optimizeFrame struct {
	Type           string       `json:"type"`
	Resume         types.Resume `json:"resume"`
	JobDescription string       `json:"jobDescription"`
	JobTitle       string       `json:"jobTitle"`
	Company        string       `json:"company"`
}

type inboundFrame struct {
	Type     string          `json:"type"`
	Stage    string          `json:"stage"`
	Progress float64         `json:"progress"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
}

// decodeFrame turns a raw text frame into a Message. Frames that are not
// JSON or carry an unknown type come back as TypeMalformed.
func decodeFrame(data []byte) Message {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return malformed(err)
	}

	msg := Message{
		Type:    MessageType(frame.Type),
		Stage:   frame.Stage,
		Message: frame.Message,
	}
	switch msg.Type {
	case TypeProgress:
		msg.Progress = clampProgress(frame.Progress)
	case TypeResult:
		if len(frame.Data) == 0 || string(frame.Data) == "null" {
			return malformed(nil)
		}
		msg.Data = frame.Data
		msg.Progress = 100
	case TypeError:
		if msg.Message == "" {
			msg.Message = "The résumé service reported an error"
		}
		msg.Err = errors.NewBackendError(errors.ErrCodeBackendFailed, msg.Message, nil)
	default:
		return malformed(nil).withType(frame.Type)
	}
	return msg
}

func malformed(cause error) Message {
	return Message{
		Type:    TypeMalformed,
		Message: "Received an unreadable message from the résumé service",
		Err: errors.NewProtocolError(errors.ErrCodeMalformedMessage,
			"Received an unreadable message from the résumé service", cause),
	}
}

func (m Message) withType(frameType string) Message {
	if appErr, ok := m.Err.(*errors.AppError); ok {
		appErr.WithContext("frame_type", frameType)
	}
	return m
}

func clampProgress(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, p))))
}

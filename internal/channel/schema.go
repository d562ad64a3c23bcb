package channel

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"resumeflow/internal/errors"
	"resumeflow/internal/types"

	"github.com/xeipuuv/gojsonschema"
)

const resumeSchema = `{
	"type": "object",
	"required": ["contact"],
	"properties": {
		"contact": {
			"type": "object",
			"properties": {
				"name": {"type": ["string", "null"]},
				"email": {"type": ["string", "null"]},
				"phone": {"type": ["string", "null"]},
				"location": {"type": ["string", "null"]}
			}
		},
		"summary": {"type": ["string", "null"]},
		"experience": {"type": ["array", "null"], "items": {"type": "object"}},
		"education": {"type": ["array", "null"], "items": {"type": "object"}},
		"skills": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["category"],
				"properties": {
					"category": {"type": "string"},
					"items": {"type": ["array", "null"], "items": {"type": "string"}}
				}
			}
		}
	}
}`

var parseResultSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["resume"],
	"properties": {
		"resume": ` + resumeSchema + `,
		"extractedText": {"type": ["string", "null"]},
		"warnings": {"type": ["array", "null"], "items": {"type": "string"}}
	}
}`

var optimizeResultSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["optimizedResume", "coverLetter"],
	"properties": {
		"optimizedResume": {
			"allOf": [` + resumeSchema + `],
			"properties": {
				"matchScore": {"type": "number", "minimum": 0, "maximum": 100},
				"potentialScore": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
				"changes": {
					"type": ["array", "null"],
					"items": {
						"type": "object",
						"properties": {
							"type": {"enum": ["added", "modified", "reordered"]}
						}
					}
				},
				"matchedKeywords": {"type": ["array", "null"], "items": {"type": "string"}}
			}
		},
		"coverLetter": {
			"type": "object",
			"properties": {
				"greeting": {"type": ["string", "null"]},
				"body": {"type": ["array", "null"], "items": {"type": "string"}}
			}
		},
		"jobKeywords": {"type": ["array", "null"], "items": {"type": "string"}}
	}
}`

var compiledSchemas = sync.OnceValues(func() (map[string]*gojsonschema.Schema, error) {
	out := make(map[string]*gojsonschema.Schema, 2)
	for name, src := range map[string]string{
		"parse":    parseResultSchema,
		"optimize": optimizeResultSchema,
	} {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		out[name] = schema
	}
	return out, nil
})

func checkPayload(name string, data json.RawMessage) error {
	schemas, err := compiledSchemas()
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeMalformedMessage, "Result schema unavailable", err)
	}
	result, err := schemas[name].Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.NewProtocolError(errors.ErrCodeMalformedMessage,
			"The résumé service returned an unreadable result", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return errors.NewProtocolError(errors.ErrCodeMalformedMessage,
			"The résumé service returned an incomplete result", nil).
			WithContext("problems", strings.Join(problems, "; "))
	}
	return nil
}

// DecodeParseResult checks and decodes the data of a parse result message.
func DecodeParseResult(data json.RawMessage) (*types.ParseResult, error) {
	if err := checkPayload("parse", data); err != nil {
		return nil, err
	}
	var result types.ParseResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.NewProtocolError(errors.ErrCodeMalformedMessage,
			"The résumé service returned an unreadable result", err)
	}
	result.Resume.EnsureIDs()
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	return &result, nil
}

// DecodeOptimizeResult checks and decodes the data of an optimize result message.
func DecodeOptimizeResult(data json.RawMessage) (*types.OptimizeResult, error) {
	if err := checkPayload("optimize", data); err != nil {
		return nil, err
	}
	var result types.OptimizeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.NewProtocolError(errors.ErrCodeMalformedMessage,
			"The résumé service returned an unreadable result", err)
	}
	result.OptimizedResume.EnsureIDs()
	if result.JobKeywords == nil {
		result.JobKeywords = []string{}
	}
	if result.OptimizedResume.MatchedKeywords == nil {
		result.OptimizedResume.MatchedKeywords = []string{}
	}
	if result.OptimizedResume.Changes == nil {
		result.OptimizedResume.Changes = []types.ResumeChange{}
	}
	return &result, nil
}

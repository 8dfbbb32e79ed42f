// Package validation checks the action envelope carried by every loan API
// request against a JSON schema before any business logic runs.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const envelopeSchema = `{
	"type": "object",
	"properties": {
		"action": {
			"type": "string",
			"enum": ["validate", "process", "updateStatus", "calculate-eligibility"]
		},
		"applicationData": {
			"type": "object"
		},
		"applicationId": {
			"type": "string",
			"minLength": 1
		},
		"status": {
			"type": "string"
		},
		"notes": {
			"type": "string"
		}
	},
	"required": ["action"]
}`

var compiledEnvelopeSchema *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	if err != nil {
		panic(fmt.Sprintf("envelope schema does not compile: %v", err))
	}
	compiledEnvelopeSchema = schema
}

// ValidateEnvelope checks the raw request body against the envelope schema.
// Returns a human-readable description of every violation, or empty when the
// body conforms.
func ValidateEnvelope(body []byte) (bool, string) {
	result, err := compiledEnvelopeSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return false, fmt.Sprintf("request body is not valid JSON: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return false, strings.Join(details, "; ")
}

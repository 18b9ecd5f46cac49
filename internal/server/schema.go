package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

const chatRequestSchema = `{
  "type": "object",
  "properties": {
    "conversation_id": {"type": "string", "pattern": "^web-[A-Za-z0-9_.:-]{1,124}$"},
    "message": {"type": "string", "minLength": 1, "maxLength": 2000}
  },
  "required": ["message"],
  "additionalProperties": false
}`

const eligibilityRequestSchema = `{
  "type": "object",
  "properties": {
    "reference": {"type": "string", "maxLength": 64}
  },
  "required": ["reference"],
  "additionalProperties": false
}`

var (
	chatSchema        = mustSchema(chatRequestSchema)
	eligibilitySchema = mustSchema(eligibilityRequestSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compiling request schema: %v", err))
	}
	return s
}

// validate checks raw JSON against schema and decodes it into v.
func validate(schema *gojsonschema.Schema, raw []byte, v any) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("invalid request: %s", strings.Join(errs, "; "))
	}
	return json.Unmarshal(raw, v)
}

// decodeRequest reads a bounded body and validates it. On failure it has
// already written a 400.
func decodeRequest(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, v any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return false
	}
	if err := validate(schema, raw, v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

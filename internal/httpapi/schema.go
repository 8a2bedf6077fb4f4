package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSON schemas for the two request bodies the spec calls out as needing
// validation beyond plain unmarshal: node create and network create (§6).
// Kept as package-level string literals rather than files, matching how
// small the rest of the API's request shapes are.
const nodeCreateSchema = `{
	"type": "object",
	"required": ["nodes"],
	"properties": {
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "mgt", "netboot"],
				"properties": {
					"name":    {"type": "string", "minLength": 1},
					"mgt":     {"type": "string", "minLength": 1},
					"netboot": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

const networkCreateSchema = `{
	"type": "object",
	"required": ["name", "subnet", "netmask"],
	"properties": {
		"name":    {"type": "string", "minLength": 1},
		"subnet":  {"type": "string", "minLength": 1},
		"netmask": {"type": "string", "minLength": 1}
	}
}`

// validateBody checks body against schema, returning a flattened error
// message listing every failing field when validation fails.
func validateBody(schema string, body []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(body)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

// readAndValidate reads the full request body, validates it against
// schema, then unmarshals it into v. Handlers that need schema validation
// use this instead of decodeJSON so the body can be checked before
// structural decoding.
func readAndValidate(r *http.Request, schema string, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if err := validateBody(schema, body); err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

package httpprobe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// CheckError is a failed response check.
//
// Error() is stable across requests, so repeated failures of one check
// collapse into a single error-table row. Detail carries the per-response
// part, such as the value actually seen.
type CheckError struct {
	Check  string
	Detail string
}

func (e *CheckError) Error() string {
	return e.Check
}

// Expectation asserts the value at a JSON path of the response body.
type Expectation struct {
	// Path is a JSONPath ($.items[0].id) or gjson path (items.0.id)
	Path string

	// Equals is the expected string form of the value; empty only checks
	// that the path exists
	Equals string
}

func (e Expectation) check(body []byte) error {
	result := gjson.GetBytes(body, gjsonPath(e.Path))
	if !result.Exists() {
		return &CheckError{Check: fmt.Sprintf("json path %s not found", e.Path)}
	}
	if e.Equals == "" {
		return nil
	}

	got := result.String()
	if result.Type == gjson.Null {
		got = "null"
	}
	if got != e.Equals {
		return &CheckError{
			Check:  fmt.Sprintf("json path %s: expected %s", e.Path, e.Equals),
			Detail: got,
		}
	}
	return nil
}

// gjsonPath converts a JSONPath expression to gjson syntax:
// $.users[0].name becomes users.0.name.
func gjsonPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	path = strings.NewReplacer(`['`, ".", `']`, "", `["`, ".", `"]`, "").Replace(path)
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)
	return strings.TrimPrefix(path, ".")
}

// Schema is a compiled JSON schema the response body must satisfy.
type Schema struct {
	schema *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document.
func CompileSchema(schema string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{schema: compiled}, nil
}

func (s *Schema) check(body []byte) error {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return &CheckError{Check: "response is not valid JSON", Detail: err.Error()}
	}

	if err := s.schema.Validate(doc); err != nil {
		return &CheckError{Check: "response does not match schema", Detail: err.Error()}
	}
	return nil
}

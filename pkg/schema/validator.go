package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Issue describes a single structural violation found during validation.
type Issue struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries the full list of violations for one document.
type ValidationError struct {
	Schema string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("document does not conform to schema %q", e.Schema)
	}

	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return fmt.Sprintf("schema %q: %s", e.Schema, strings.Join(parts, "; "))
}

// Validator compiles JSON Schema documents once and validates candidates against them.
// Compilation is cached by schema name; Validate is safe for concurrent use.
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// Register compiles the schema document and caches it under the given name.
// Registering the same name twice replaces the previous schema.
func (v *Validator) Register(name string, document []byte) error {
	if name == "" {
		return fmt.Errorf("schema name must not be empty")
	}

	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("mem://%s.json", name)
	if err := compiler.AddResource(url, bytes.NewReader(document)); err != nil {
		return fmt.Errorf("add schema %q: %w", name, err)
	}

	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", name, err)
	}

	v.mu.Lock()
	v.compiled[name] = compiled
	v.mu.Unlock()

	return nil
}

// Validate checks the decoded value against the named schema. It returns nil on
// success and a *ValidationError carrying the issue list on failure.
func (v *Validator) Validate(name string, value interface{}) error {
	v.mu.RLock()
	compiled, ok := v.compiled[name]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("schema %q is not registered", name)
	}

	err := compiled.Validate(value)
	if err == nil {
		return nil
	}

	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("validate against schema %q: %w", name, err)
	}

	issues := make([]Issue, 0, 4)
	flatten(verr, &issues)
	return &ValidationError{Schema: name, Issues: issues}
}

// ValidateRaw parses raw JSON and validates it against the named schema.
func (v *Validator) ValidateRaw(name string, raw json.RawMessage) error {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("decode candidate document: %w", err)
	}
	return v.Validate(name, value)
}

func flatten(verr *jsonschema.ValidationError, issues *[]Issue) {
	if len(verr.Causes) == 0 {
		path := verr.InstanceLocation
		if path == "" {
			path = "/"
		}
		*issues = append(*issues, Issue{
			Path:    path,
			Rule:    keyword(verr.KeywordLocation),
			Message: verr.Message,
		})
		return
	}

	for _, cause := range verr.Causes {
		flatten(cause, issues)
	}
}

func keyword(location string) string {
	if location == "" {
		return ""
	}
	segments := strings.Split(location, "/")
	return segments[len(segments)-1]
}

package evaluator

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/evalprd/evalprd-api/internal/dto"
	"github.com/evalprd/evalprd-api/pkg/schema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Evaluator names; each is both a route segment and a schema identity.
const (
	BinaryScore = "binary_score"
	FixPlan     = "fix_plan"
	AgentTasks  = "agent_tasks"
)

// Definition parameterizes one streaming evaluation: prompt construction and
// the output schema the model result must satisfy. The three evaluators are
// instances of this one shape.
type Definition struct {
	Name   string
	Schema json.RawMessage

	buildSystem func(req dto.EvaluateRequest) string
}

// SystemPrompt builds the full system prompt for the request, combining the
// shared evaluator persona with the mode-specific appender.
func (d Definition) SystemPrompt(req dto.EvaluateRequest) string {
	return systemPrompt + "\n\n" + d.buildSystem(req)
}

// UserPrompt builds the user block for the request.
func (d Definition) UserPrompt(req dto.EvaluateRequest) string {
	return BuildUserBlock(req)
}

// Registry holds the three evaluator definitions with their compiled schemas.
type Registry struct {
	validator   *schema.Validator
	definitions map[string]Definition
}

// NewRegistry loads the embedded output schemas, compiles them into the
// validator, and exposes the evaluator definitions.
func NewRegistry(validator *schema.Validator) (*Registry, error) {
	registry := &Registry{
		validator:   validator,
		definitions: make(map[string]Definition, 3),
	}

	builders := map[string]func(req dto.EvaluateRequest) string{
		BinaryScore: func(req dto.EvaluateRequest) string {
			evidence := 1
			if req.EvidencePerCriterion != nil {
				evidence = *req.EvidencePerCriterion
			}
			return appendBinary(evidence)
		},
		FixPlan: func(req dto.EvaluateRequest) string {
			limit := 10
			if req.Limit != nil {
				limit = *req.Limit
			}
			horizon := 10
			if req.TimeHorizonDays != nil {
				horizon = *req.TimeHorizonDays
			}
			includeTests := true
			if req.IncludeAcceptanceTests != nil {
				includeTests = *req.IncludeAcceptanceTests
			}
			return appendFixPlan(limit, horizon, includeTests)
		},
		AgentTasks: func(req dto.EvaluateRequest) string {
			minHours, maxHours := 2.0, 4.0
			if req.TaskHoursMin != nil {
				minHours = *req.TaskHoursMin
			}
			if req.TaskHoursMax != nil {
				maxHours = *req.TaskHoursMax
			}
			mermaid := false
			if req.EmitMermaid != nil {
				mermaid = *req.EmitMermaid
			}
			return appendAgentTasks(minHours, maxHours, mermaid)
		},
	}

	for name, builder := range builders {
		document, err := schemaFS.ReadFile(fmt.Sprintf("schemas/%s.json", name))
		if err != nil {
			return nil, fmt.Errorf("read embedded schema %q: %w", name, err)
		}

		if err := validator.Register(name, document); err != nil {
			return nil, err
		}

		registry.definitions[name] = Definition{
			Name:        name,
			Schema:      json.RawMessage(document),
			buildSystem: builder,
		}
	}

	return registry, nil
}

// Definition returns the evaluator definition registered under name.
func (r *Registry) Definition(name string) (Definition, bool) {
	def, ok := r.definitions[name]
	return def, ok
}

// Names lists the registered evaluator names.
func (r *Registry) Names() []string {
	return []string{BinaryScore, FixPlan, AgentTasks}
}

// ValidateOutput checks a raw model payload against the named evaluator's
// output schema.
func (r *Registry) ValidateOutput(name string, raw json.RawMessage) error {
	return r.validator.ValidateRaw(name, raw)
}

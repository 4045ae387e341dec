package dto

// EvaluationArtifact is a named supplementary document submitted alongside the PRD.
type EvaluationArtifact struct {
	Name    string `json:"name" validate:"required"`
	Content string `json:"content" validate:"required"`
	Kind    string `json:"kind" validate:"omitempty,oneof=note email call_notes jira spec other"`
}

// EvaluateRequest is the shared input for the three evaluator endpoints. The
// document text must meet a minimum length before any model call is made.
type EvaluateRequest struct {
	PRDText       string               `json:"prd_text" validate:"required,min=100"`
	Artifacts     []EvaluationArtifact `json:"artifacts" validate:"omitempty,dive"`
	Sections      []string             `json:"sections"`
	RubricVersion string               `json:"rubric_version"`

	// Binary score options.
	EvidencePerCriterion *int  `json:"evidence_per_criterion" validate:"omitempty,min=0,max=3"`
	FailOnMissing        *bool `json:"fail_on_missing"`

	// Fix plan options.
	Limit                  *int  `json:"limit" validate:"omitempty,min=1"`
	TimeHorizonDays        *int  `json:"time_horizon_days" validate:"omitempty,min=1"`
	IncludeAcceptanceTests *bool `json:"include_acceptance_tests"`

	// Agent task options.
	TaskHoursMin *float64 `json:"task_hours_min" validate:"omitempty,gt=0"`
	TaskHoursMax *float64 `json:"task_hours_max" validate:"omitempty,gt=0"`
	EmitMermaid  *bool    `json:"emit_mermaid"`
}

package evaluator

// Criterion is one dimension of the eleven-point PRD rubric. The rubric content
// is opaque to this service; it is carried into prompts and validated as data.
type Criterion struct {
	ID        string
	Name      string
	ShortName string
	Gating    bool
}

// RubricVersion is the default rubric tag applied when a request omits one.
const RubricVersion = "v1.0"

// RubricCriteria lists the eleven criteria in evaluation order. C3, C5, C10 and
// C11 are gating: any of them failing blocks a GO readiness state.
var RubricCriteria = []Criterion{
	{ID: "C1", Name: "Business Problem Clarity", ShortName: "Problem Clarity", Gating: false},
	{ID: "C2", Name: "Current Process Documentation", ShortName: "Current Process", Gating: false},
	{ID: "C3", Name: "Solution–Problem Alignment", ShortName: "Solution Alignment", Gating: true},
	{ID: "C4", Name: "Narrative Clarity & Plain Language", ShortName: "Clarity", Gating: false},
	{ID: "C5", Name: "Technical Requirements Completeness", ShortName: "Tech Requirements", Gating: true},
	{ID: "C6", Name: "Feature Specificity & Implementation Clarity", ShortName: "Feature Specificity", Gating: false},
	{ID: "C7", Name: "Measurability & Success Criteria", ShortName: "Measurability", Gating: false},
	{ID: "C8", Name: "Consistent Formatting & Structure", ShortName: "Formatting", Gating: false},
	{ID: "C9", Name: "Scope Discipline (Anti-Explosion)", ShortName: "Scope Discipline", Gating: false},
	{ID: "C10", Name: "AI Agent Readiness & Implementability", ShortName: "Eng Readiness", Gating: true},
	{ID: "C11", Name: "AI Agent Task Decomposability", ShortName: "Agent Decomposability", Gating: true},
}

// GatingCriteria returns the ids of the gating criteria.
func GatingCriteria() []string {
	ids := make([]string, 0, 4)
	for _, c := range RubricCriteria {
		if c.Gating {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

package entity

import "time"

// TemplateStep is one default approver slot a template seeds into a new
// request's approval line.
type TemplateStep struct {
	ApproverID string `json:"approver_id"`
	StepOrder  int    `json:"step_order"`
	IsRequired bool   `json:"is_required"`
	IsParallel bool   `json:"is_parallel"`
}

// DocumentTemplate is a reusable document form. Template management is
// external; only lookup is needed here, for the document-number prefix
// and the default approval steps.
type DocumentTemplate struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	DocumentPrefix string         `json:"document_prefix"`
	DefaultSteps   []TemplateStep `json:"default_steps,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

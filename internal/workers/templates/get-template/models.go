package gettemplate

import (
	"template-engine/internal/domain"
	"template-engine/internal/workers/templates"
)

type Input struct {
	TemplateID   string `json:"templateId"`
	IncludeStats bool   `json:"includeStats"`
}

type Output struct {
	Template templates.TemplateView `json:"template"`
	Stats    *domain.TemplateStats  `json:"stats,omitempty"`
}

const inputSchemaJSON = `{
  "type": "object",
  "required": ["templateId"],
  "properties": {
    "templateId": {"type": "string", "minLength": 1},
    "includeStats": {"type": "boolean"}
  }
}`

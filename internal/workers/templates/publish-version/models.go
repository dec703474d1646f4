package publishversion

import "template-engine/internal/workers/templates"

type Input struct {
	TemplateID string `json:"templateId"`
	VersionID  string `json:"versionId"`
}

type Output struct {
	TemplateID  string                `json:"templateId"`
	VersionID   string                `json:"versionId"`
	Version     string                `json:"version"`
	PublishedAt string                `json:"publishedAt"`
	Published   templates.VersionView `json:"published"`
}

const inputSchemaJSON = `{
  "type": "object",
  "required": ["templateId", "versionId"],
  "properties": {
    "templateId": {"type": "string", "minLength": 1},
    "versionId": {"type": "string", "minLength": 1}
  }
}`

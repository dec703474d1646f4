package saveversion

import "template-engine/internal/workers/templates"

type Input struct {
	TemplateID  string                         `json:"templateId"`
	Subject     string                         `json:"subject"`
	Body        string                         `json:"body"`
	InputSchema []templates.InputVariableInput `json:"inputSchema"`
	Changelog   string                         `json:"changelog"`
}

type Output struct {
	TemplateID string                `json:"templateId"`
	VersionID  string                `json:"versionId"`
	Version    string                `json:"version"`
	Draft      templates.VersionView `json:"draft"`
}

const inputSchemaJSON = `{
  "type": "object",
  "required": ["templateId", "body"],
  "properties": {
    "templateId": {"type": "string", "minLength": 1},
    "subject": {"type": "string"},
    "body": {"type": "string"},
    "changelog": {"type": "string"},
    "inputSchema": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "required": {"type": "boolean"}
        }
      }
    }
  }
}`

package createtemplate

import "template-engine/internal/workers/templates"

type Input struct {
	Name        string                         `json:"name"`
	Description string                         `json:"description"`
	Channel     string                         `json:"channel"`
	OrgID       string                         `json:"orgId"`
	WorkspaceID string                         `json:"workspaceId"`
	Subject     string                         `json:"subject"`
	Body        string                         `json:"body"`
	InputSchema []templates.InputVariableInput `json:"inputSchema"`
	Changelog   string                         `json:"changelog"`
}

type Output struct {
	TemplateID string                 `json:"templateId"`
	VersionID  string                 `json:"versionId"`
	Version    string                 `json:"version"`
	Template   templates.TemplateView `json:"template"`
}

const inputSchemaJSON = `{
  "type": "object",
  "required": ["name", "channel", "orgId", "workspaceId"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 255},
    "description": {"type": "string"},
    "channel": {"type": "string", "enum": ["EMAIL", "SMS", "WEBHOOK", "PUSH", "email", "sms", "webhook", "push"]},
    "orgId": {"type": "string", "minLength": 1},
    "workspaceId": {"type": "string", "minLength": 1},
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

package listtemplates

import "template-engine/internal/workers/templates"

type Input struct {
	OrgID       string `json:"orgId"`
	WorkspaceID string `json:"workspaceId"`
	Channel     string `json:"channel"`
	Status      string `json:"status"`
	Page        int    `json:"page"`
	Size        int    `json:"size"`
}

type Output struct {
	Items []templates.TemplateView `json:"items"`
	Total int64                    `json:"total"`
	Page  int                      `json:"page"`
	Size  int                      `json:"size"`
}

const inputSchemaJSON = `{
  "type": "object",
  "required": ["orgId", "workspaceId"],
  "properties": {
    "orgId": {"type": "string", "minLength": 1},
    "workspaceId": {"type": "string", "minLength": 1},
    "channel": {"type": "string"},
    "status": {"type": "string"},
    "page": {"type": "integer", "minimum": 0},
    "size": {"type": "integer", "minimum": 0}
  }
}`

package executetemplate

type Input struct {
	TemplateID string                 `json:"templateId"`
	VersionID  string                 `json:"versionId"`
	Recipients []string               `json:"recipients"`
	Variables  map[string]interface{} `json:"variables"`
}

// Output carries the rendered content. A VALIDATION_ERROR status is a
// completed job: the process decides what to do with it.
type Output struct {
	ExecutionID     string `json:"executionId"`
	TemplateID      string `json:"templateId"`
	VersionID       string `json:"versionId"`
	Version         string `json:"version"`
	Channel         string `json:"channel"`
	Status          string `json:"status"`
	ErrorCode       string `json:"errorCode,omitempty"`
	RenderedSubject string `json:"renderedSubject,omitempty"`
	RenderedContent string `json:"renderedContent"`
	Rendered        bool   `json:"rendered"`
	ExecutedOn      string `json:"executedOn"`
}

const inputSchemaJSON = `{
  "type": "object",
  "required": ["templateId", "recipients"],
  "properties": {
    "templateId": {"type": "string", "minLength": 1},
    "versionId": {"type": "string"},
    "recipients": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "variables": {"type": "object"}
  }
}`

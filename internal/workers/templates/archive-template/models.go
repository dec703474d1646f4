package archivetemplate

type Input struct {
	TemplateID string `json:"templateId"`
}

type Output struct {
	TemplateID string `json:"templateId"`
	Status     string `json:"status"`
	ArchivedAt string `json:"archivedAt,omitempty"`
}

const inputSchemaJSON = `{
  "type": "object",
  "required": ["templateId"],
  "properties": {
    "templateId": {"type": "string", "minLength": 1}
  }
}`

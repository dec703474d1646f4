package domain

import "time"

// ExecutionStatus is the outcome recorded for a render attempt.
type ExecutionStatus string

const (
	ExecutionStatusSuccess         ExecutionStatus = "SUCCESS"
	ExecutionStatusValidationError ExecutionStatus = "VALIDATION_ERROR"
)

// NotificationExecution is the append-only audit record of one render attempt.
// Nothing mutates it after creation.
type NotificationExecution struct {
	ID              string                 `json:"id"`
	TemplateID      string                 `json:"templateId"`
	VersionID       string                 `json:"versionId"`
	Version         string                 `json:"version"`
	OrgID           string                 `json:"orgId"`
	WorkspaceID     string                 `json:"workspaceId"`
	Channel         Channel                `json:"channel"`
	Recipients      []string               `json:"recipients"`
	Variables       map[string]interface{} `json:"variables"`
	RenderedSubject string                 `json:"renderedSubject,omitempty"`
	RenderedContent string                 `json:"renderedContent"`
	Status          ExecutionStatus        `json:"status"`
	ErrorCode       string                 `json:"errorCode,omitempty"`
	ExecutedOn      time.Time              `json:"executedOn"`
}

// SnapshotVariables copies the top level of a variable map so later caller
// mutations do not leak into the audit record.
func SnapshotVariables(vars map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

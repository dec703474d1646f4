// Package errors provides the typed business and infrastructure errors shared
// by the template engine and its workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Template lifecycle and rendering errors
const (
	ErrCodeTemplateNotFound        ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeVersionNotFound         ErrorCode = "VERSION_NOT_FOUND"
	ErrCodeVersionAlreadyPublished ErrorCode = "VERSION_ALREADY_PUBLISHED"
	ErrCodeVersionImmutable        ErrorCode = "VERSION_IMMUTABLE"
	ErrCodeTemplateArchived        ErrorCode = "TEMPLATE_ARCHIVED"
	ErrCodeNoPublishedVersion      ErrorCode = "NO_PUBLISHED_VERSION"
	ErrCodeVersionNotPublished     ErrorCode = "VERSION_NOT_PUBLISHED"
	ErrCodeMissingRequiredVariable ErrorCode = "MISSING_REQUIRED_VARIABLE"
	ErrCodeInvalidVariableType     ErrorCode = "INVALID_VARIABLE_TYPE"
	ErrCodeTemplateTooLarge        ErrorCode = "TEMPLATE_TOO_LARGE"
	ErrCodeConcurrencyConflict     ErrorCode = "CONCURRENCY_CONFLICT"
)

// Infrastructure / transport errors
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeEventPublishFailed       ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeAuditWriteFailed         ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeInvalidInput             ErrorCode = "INVALID_INPUT"
	ErrCodeWorkflowEngineFailed     ErrorCode = "WORKFLOW_ENGINE_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is reports code equality so callers can match with errors.Is against a
// template error such as &StandardError{Code: ErrCodeTemplateArchived}.
func (e *StandardError) Is(target error) bool {
	var t *StandardError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newBusiness(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(templateID string) *StandardError {
	return newBusiness(ErrCodeTemplateNotFound, "Template not found", fmt.Sprintf("templateId: %s", templateID))
}

// NewVersionNotFoundError creates a non-retryable version lookup error.
func NewVersionNotFoundError(versionID string) *StandardError {
	return newBusiness(ErrCodeVersionNotFound, "Template version not found", fmt.Sprintf("versionId: %s", versionID))
}

// NewVersionAlreadyPublishedError is returned when publish is called twice.
func NewVersionAlreadyPublishedError(versionID string) *StandardError {
	return newBusiness(ErrCodeVersionAlreadyPublished, "Template version is already published", fmt.Sprintf("versionId: %s", versionID))
}

// NewVersionImmutableError is returned when a published version is edited.
func NewVersionImmutableError(versionID string) *StandardError {
	return newBusiness(ErrCodeVersionImmutable, "Published template version cannot be modified", fmt.Sprintf("versionId: %s", versionID))
}

// NewTemplateArchivedError is returned for any mutation or execution of an archived template.
func NewTemplateArchivedError(templateID string) *StandardError {
	return newBusiness(ErrCodeTemplateArchived, "Template is archived", fmt.Sprintf("templateId: %s", templateID))
}

// NewNoPublishedVersionError is returned when no version of a template is published.
func NewNoPublishedVersionError(templateID string) *StandardError {
	return newBusiness(ErrCodeNoPublishedVersion, "Template has no published version", fmt.Sprintf("templateId: %s", templateID))
}

// NewVersionNotPublishedError is returned when a draft version is targeted for execution.
func NewVersionNotPublishedError(versionID string) *StandardError {
	return newBusiness(ErrCodeVersionNotPublished, "Draft template version cannot be executed", fmt.Sprintf("versionId: %s", versionID))
}

// NewMissingRequiredVariableError names the variable that was not supplied.
func NewMissingRequiredVariableError(name string) *StandardError {
	err := newBusiness(ErrCodeMissingRequiredVariable, fmt.Sprintf("Missing required variable: %s", name), "")
	err.Metadata = map[string]interface{}{"variable": name}
	return err
}

// NewInvalidVariableTypeError names the variable and the type it should have had.
func NewInvalidVariableTypeError(name, expected string) *StandardError {
	err := newBusiness(ErrCodeInvalidVariableType,
		fmt.Sprintf("Invalid type for variable '%s', expected %s", name, expected), "")
	err.Metadata = map[string]interface{}{"variable": name, "expectedType": expected}
	return err
}

// NewTemplateTooLargeError is returned when content exceeds the render ceiling.
func NewTemplateTooLargeError(length, limit int) *StandardError {
	return newBusiness(ErrCodeTemplateTooLarge, "Template content exceeds the maximum size",
		fmt.Sprintf("length: %d, limit: %d", length, limit))
}

// NewConcurrencyConflictError creates a retryable optimistic-lock error.
func NewConcurrencyConflictError(templateID string, expectedRevision int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeConcurrencyConflict,
		Message:   "Template was modified concurrently",
		Details:   fmt.Sprintf("templateId: %s, expectedRevision: %d", templateID, expectedRevision),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEventPublishFailedError creates a retryable message bus error.
func NewEventPublishFailedError(eventType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventPublishFailed,
		Message:   "Domain event publication failed",
		Details:   fmt.Sprintf("event: %s, error: %s", eventType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditWriteFailedError creates a retryable execution log error.
func NewAuditWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditWriteFailed,
		Message:   "Execution audit record could not be stored",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable request validation error.
func NewInvalidInputError(details string) *StandardError {
	return newBusiness(ErrCodeInvalidInput, "Invalid input", details)
}

// NewWorkflowEngineError wraps a Zeebe gateway failure.
func NewWorkflowEngineError(operation string, err error, retryable bool) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkflowEngineFailed,
		Message:   "Workflow engine request failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Inspection Helpers
// ==========================

// CodeOf returns the code of a StandardError anywhere in err's chain, or
// ErrCodeInternal for anything else.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeEventPublishFailed,
		ErrCodeAuditWriteFailed,
		ErrCodeWorkflowEngineFailed:
		return 3

	case ErrCodeConcurrencyConflict:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN codes are identical to the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VARIABLE") || code == ErrCodeTemplateTooLarge || code == ErrCodeInvalidInput:
		return "VALIDATION"
	case strings.Contains(codeStr, "VERSION") || code == ErrCodeTemplateArchived:
		return "LIFECYCLE"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || code == ErrCodeConcurrencyConflict:
		return "DATABASE"
	case code == ErrCodeEventPublishFailed || code == ErrCodeAuditWriteFailed || code == ErrCodeWorkflowEngineFailed:
		return "INTEGRATION"
	default:
		return "OTHER"
	}
}

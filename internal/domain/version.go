package domain

import (
	"time"

	apperrors "template-engine/internal/common/errors"
)

// VersionState is DRAFT until published; PUBLISHED is terminal.
type VersionState string

const (
	VersionStateDraft     VersionState = "DRAFT"
	VersionStatePublished VersionState = "PUBLISHED"
)

// VersionContent is the editable part of a version.
type VersionContent struct {
	Subject     string
	Body        string
	InputSchema InputSchema
	Changelog   string
}

// TemplateVersion is one content snapshot of a template. Once published no
// content field changes again.
type TemplateVersion struct {
	id          string
	version     SemanticVersion
	subject     string
	body        string
	inputSchema InputSchema
	state       VersionState
	changelog   string
	createdAt   time.Time
	publishedAt *time.Time
}

// NewDraftVersion creates a version in DRAFT.
func NewDraftVersion(id string, version SemanticVersion, content VersionContent, createdAt time.Time) *TemplateVersion {
	return &TemplateVersion{
		id:          id,
		version:     version,
		subject:     content.Subject,
		body:        content.Body,
		inputSchema: content.InputSchema.Clone(),
		state:       VersionStateDraft,
		changelog:   content.Changelog,
		createdAt:   createdAt,
	}
}

func (v *TemplateVersion) ID() string                { return v.id }
func (v *TemplateVersion) Version() SemanticVersion  { return v.version }
func (v *TemplateVersion) Subject() string           { return v.subject }
func (v *TemplateVersion) Body() string              { return v.body }
func (v *TemplateVersion) InputSchema() InputSchema  { return v.inputSchema.Clone() }
func (v *TemplateVersion) State() VersionState       { return v.state }
func (v *TemplateVersion) Changelog() string         { return v.changelog }
func (v *TemplateVersion) CreatedAt() time.Time      { return v.createdAt }
func (v *TemplateVersion) IsPublished() bool         { return v.state == VersionStatePublished }

// PublishedAt is nil while the version is a draft.
func (v *TemplateVersion) PublishedAt() *time.Time {
	if v.publishedAt == nil {
		return nil
	}
	t := *v.publishedAt
	return &t
}

// UpdateContent replaces the content of a draft.
func (v *TemplateVersion) UpdateContent(content VersionContent) error {
	if v.IsPublished() {
		return apperrors.NewVersionImmutableError(v.id)
	}
	v.subject = content.Subject
	v.body = content.Body
	v.inputSchema = content.InputSchema.Clone()
	v.changelog = content.Changelog
	return nil
}

// Publish flips DRAFT to PUBLISHED. It can succeed at most once.
func (v *TemplateVersion) Publish(at time.Time) error {
	if v.IsPublished() {
		return apperrors.NewVersionAlreadyPublishedError(v.id)
	}
	v.state = VersionStatePublished
	v.publishedAt = &at
	return nil
}

// clone gives callers outside the aggregate a copy they cannot use to mutate it.
func (v *TemplateVersion) clone() *TemplateVersion {
	c := *v
	c.inputSchema = v.inputSchema.Clone()
	c.publishedAt = v.PublishedAt()
	return &c
}

// VersionSnapshot is the persistence form of a TemplateVersion.
type VersionSnapshot struct {
	ID          string          `json:"id"`
	Version     SemanticVersion `json:"version"`
	Subject     string          `json:"subject,omitempty"`
	Body        string          `json:"body"`
	InputSchema InputSchema     `json:"inputSchema"`
	State       VersionState    `json:"state"`
	Changelog   string          `json:"changelog"`
	CreatedAt   time.Time       `json:"createdAt"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
}

// Snapshot exports the version for storage adapters.
func (v *TemplateVersion) Snapshot() VersionSnapshot {
	return VersionSnapshot{
		ID:          v.id,
		Version:     v.version,
		Subject:     v.subject,
		Body:        v.body,
		InputSchema: v.inputSchema.Clone(),
		State:       v.state,
		Changelog:   v.changelog,
		CreatedAt:   v.createdAt,
		PublishedAt: v.PublishedAt(),
	}
}

// RestoreVersion rebuilds a version from storage without running transitions.
func RestoreVersion(s VersionSnapshot) *TemplateVersion {
	state := s.State
	if state != VersionStatePublished {
		state = VersionStateDraft
	}
	v := &TemplateVersion{
		id:          s.ID,
		version:     s.Version,
		subject:     s.Subject,
		body:        s.Body,
		inputSchema: s.InputSchema.Clone(),
		state:       state,
		changelog:   s.Changelog,
		createdAt:   s.CreatedAt,
	}
	if s.PublishedAt != nil {
		t := *s.PublishedAt
		v.publishedAt = &t
	}
	return v
}

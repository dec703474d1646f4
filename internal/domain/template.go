package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "template-engine/internal/common/errors"
)

// Channel is the delivery channel a template is written for.
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelSMS     Channel = "SMS"
	ChannelWebhook Channel = "WEBHOOK"
	ChannelPush    Channel = "PUSH"
)

// ParseChannel accepts the canonical names, case-insensitively.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWebhook, ChannelPush:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// EscapesHTML reports whether rendered values must be HTML-escaped.
func (c Channel) EscapesHTML() bool { return c == ChannelEmail }

// TemplateStatus moves only from ACTIVE to ARCHIVED.
type TemplateStatus string

const (
	TemplateStatusActive   TemplateStatus = "ACTIVE"
	TemplateStatusArchived TemplateStatus = "ARCHIVED"
)

// ParseTemplateStatus accepts the canonical names, case-insensitively.
func ParseTemplateStatus(s string) (TemplateStatus, error) {
	st := TemplateStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case TemplateStatusActive, TemplateStatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("unknown template status %q", s)
}

// TemplateDetails are the descriptive fields fixed at creation.
type TemplateDetails struct {
	Name        string
	Description string
	Channel     Channel
	OrgID       string
	WorkspaceID string
}

// NotificationTemplate is the aggregate root. Its versions are reachable only
// through its methods; getters hand out copies.
type NotificationTemplate struct {
	id          string
	name        string
	description string
	channel     Channel
	orgID       string
	workspaceID string
	status      TemplateStatus
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
	revision    int64
	versions    []*TemplateVersion
}

// NewNotificationTemplate creates an ACTIVE template seeded with its first draft.
func NewNotificationTemplate(id string, details TemplateDetails, initial *TemplateVersion, now time.Time) (*NotificationTemplate, error) {
	if strings.TrimSpace(details.Name) == "" {
		return nil, apperrors.NewInvalidInputError("template name is required")
	}
	if _, err := ParseChannel(string(details.Channel)); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if initial == nil {
		return nil, apperrors.NewInvalidInputError("initial version is required")
	}
	t := &NotificationTemplate{
		id:          id,
		name:        details.Name,
		description: details.Description,
		channel:     details.Channel,
		orgID:       details.OrgID,
		workspaceID: details.WorkspaceID,
		status:      TemplateStatusActive,
		createdAt:   now,
		updatedAt:   now,
	}
	if err := t.AddVersion(initial, now); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *NotificationTemplate) ID() string                { return t.id }
func (t *NotificationTemplate) Name() string              { return t.name }
func (t *NotificationTemplate) Description() string       { return t.description }
func (t *NotificationTemplate) Channel() Channel          { return t.channel }
func (t *NotificationTemplate) OrgID() string             { return t.orgID }
func (t *NotificationTemplate) WorkspaceID() string       { return t.workspaceID }
func (t *NotificationTemplate) Status() TemplateStatus    { return t.status }
func (t *NotificationTemplate) IsArchived() bool          { return t.status == TemplateStatusArchived }
func (t *NotificationTemplate) CreatedAt() time.Time      { return t.createdAt }
func (t *NotificationTemplate) UpdatedAt() time.Time      { return t.updatedAt }
func (t *NotificationTemplate) Revision() int64           { return t.revision }
func (t *NotificationTemplate) VersionCount() int         { return len(t.versions) }

func (t *NotificationTemplate) DeletedAt() *time.Time {
	if t.deletedAt == nil {
		return nil
	}
	d := *t.deletedAt
	return &d
}

// Versions returns copies in insertion order.
func (t *NotificationTemplate) Versions() []*TemplateVersion {
	out := make([]*TemplateVersion, len(t.versions))
	for i, v := range t.versions {
		out[i] = v.clone()
	}
	return out
}

// MarkPersisted records the revision assigned by the store after a save.
// The revision is opaque to the domain; only store adapters compare it.
func (t *NotificationTemplate) MarkPersisted(revision int64) {
	t.revision = revision
}

// AddVersion appends a version unless the template is archived.
func (t *NotificationTemplate) AddVersion(v *TemplateVersion, now time.Time) error {
	if t.IsArchived() {
		return apperrors.NewTemplateArchivedError(t.id)
	}
	t.versions = append(t.versions, v.clone())
	t.updatedAt = now
	return nil
}

// UpdateVersionContent edits a draft in place.
func (t *NotificationTemplate) UpdateVersionContent(versionID string, content VersionContent, now time.Time) error {
	if t.IsArchived() {
		return apperrors.NewTemplateArchivedError(t.id)
	}
	v, err := t.find(versionID)
	if err != nil {
		return err
	}
	if err := v.UpdateContent(content); err != nil {
		return err
	}
	t.updatedAt = now
	return nil
}

// PublishVersion publishes one draft.
func (t *NotificationTemplate) PublishVersion(versionID string, now time.Time) error {
	if t.IsArchived() {
		return apperrors.NewTemplateArchivedError(t.id)
	}
	v, err := t.find(versionID)
	if err != nil {
		return err
	}
	if err := v.Publish(now); err != nil {
		return err
	}
	t.updatedAt = now
	return nil
}

// Archive soft-deletes the template. It returns false, changing nothing,
// when the template is already archived.
func (t *NotificationTemplate) Archive(now time.Time) bool {
	if t.IsArchived() {
		return false
	}
	t.status = TemplateStatusArchived
	t.deletedAt = &now
	t.updatedAt = now
	return true
}

// GetVersion returns a copy of the version with the given id.
func (t *NotificationTemplate) GetVersion(versionID string) (*TemplateVersion, error) {
	v, err := t.find(versionID)
	if err != nil {
		return nil, err
	}
	return v.clone(), nil
}

// LatestVersion is the highest version by semantic ordering, draft or not.
func (t *NotificationTemplate) LatestVersion() *TemplateVersion {
	var latest *TemplateVersion
	for _, v := range t.versions {
		if latest == nil || v.version.Compare(latest.version) > 0 {
			latest = v
		}
	}
	if latest == nil {
		return nil
	}
	return latest.clone()
}

// GetLatestPublishedVersion is the highest published version by semantic ordering.
func (t *NotificationTemplate) GetLatestPublishedVersion() (*TemplateVersion, error) {
	var latest *TemplateVersion
	for _, v := range t.versions {
		if !v.IsPublished() {
			continue
		}
		if latest == nil || v.version.Compare(latest.version) > 0 {
			latest = v
		}
	}
	if latest == nil {
		return nil, apperrors.NewNoPublishedVersionError(t.id)
	}
	return latest.clone(), nil
}

func (t *NotificationTemplate) find(versionID string) (*TemplateVersion, error) {
	for _, v := range t.versions {
		if v.id == versionID {
			return v, nil
		}
	}
	return nil, apperrors.NewVersionNotFoundError(versionID)
}

// TemplateSnapshot is the persistence and cache form of the aggregate.
type TemplateSnapshot struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Channel     Channel           `json:"channel"`
	OrgID       string            `json:"orgId"`
	WorkspaceID string            `json:"workspaceId"`
	Status      TemplateStatus    `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	DeletedAt   *time.Time        `json:"deletedAt,omitempty"`
	Revision    int64             `json:"revision"`
	Versions    []VersionSnapshot `json:"versions"`
}

// Snapshot exports the full aggregate.
func (t *NotificationTemplate) Snapshot() TemplateSnapshot {
	versions := make([]VersionSnapshot, len(t.versions))
	for i, v := range t.versions {
		versions[i] = v.Snapshot()
	}
	return TemplateSnapshot{
		ID:          t.id,
		Name:        t.name,
		Description: t.description,
		Channel:     t.channel,
		OrgID:       t.orgID,
		WorkspaceID: t.workspaceID,
		Status:      t.status,
		CreatedAt:   t.createdAt,
		UpdatedAt:   t.updatedAt,
		DeletedAt:   t.DeletedAt(),
		Revision:    t.revision,
		Versions:    versions,
	}
}

// RestoreTemplate rebuilds an aggregate loaded by a store or cache.
func RestoreTemplate(s TemplateSnapshot) (*NotificationTemplate, error) {
	if len(s.Versions) == 0 {
		return nil, fmt.Errorf("template %s has no versions", s.ID)
	}
	status := s.Status
	if status != TemplateStatusArchived {
		status = TemplateStatusActive
	}
	t := &NotificationTemplate{
		id:          s.ID,
		name:        s.Name,
		description: s.Description,
		channel:     s.Channel,
		orgID:       s.OrgID,
		workspaceID: s.WorkspaceID,
		status:      status,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
		revision:    s.Revision,
		versions:    make([]*TemplateVersion, len(s.Versions)),
	}
	if s.DeletedAt != nil {
		d := *s.DeletedAt
		t.deletedAt = &d
	}
	for i, v := range s.Versions {
		t.versions[i] = RestoreVersion(v)
	}
	return t, nil
}

package templates

import (
	"time"

	"template-engine/internal/common/errors"
	"template-engine/internal/domain"
)

// TemplateView is the job-variable form of an aggregate.
type TemplateView struct {
	TemplateID    string        `json:"templateId"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Channel       string        `json:"channel"`
	OrgID         string        `json:"orgId"`
	WorkspaceID   string        `json:"workspaceId"`
	Status        string        `json:"status"`
	LatestVersion *VersionView  `json:"latestVersion,omitempty"`
	Versions      []VersionView `json:"versions,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type VersionView struct {
	VersionID   string                 `json:"versionId"`
	Version     string                 `json:"version"`
	State       string                 `json:"state"`
	Subject     string                 `json:"subject,omitempty"`
	Body        string                 `json:"body"`
	InputSchema []domain.InputVariable `json:"inputSchema"`
	Changelog   string                 `json:"changelog,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	PublishedAt *time.Time             `json:"publishedAt,omitempty"`
}

func NewVersionView(v *domain.TemplateVersion) VersionView {
	return VersionView{
		VersionID:   v.ID(),
		Version:     v.Version().String(),
		State:       string(v.State()),
		Subject:     v.Subject(),
		Body:        v.Body(),
		InputSchema: v.InputSchema(),
		Changelog:   v.Changelog(),
		CreatedAt:   v.CreatedAt(),
		PublishedAt: v.PublishedAt(),
	}
}

// NewTemplateView summarises t. withVersions adds the full version list.
func NewTemplateView(t *domain.NotificationTemplate, withVersions bool) TemplateView {
	view := TemplateView{
		TemplateID:  t.ID(),
		Name:        t.Name(),
		Description: t.Description(),
		Channel:     string(t.Channel()),
		OrgID:       t.OrgID(),
		WorkspaceID: t.WorkspaceID(),
		Status:      string(t.Status()),
		CreatedAt:   t.CreatedAt(),
		UpdatedAt:   t.UpdatedAt(),
	}
	if latest := t.LatestVersion(); latest != nil {
		lv := NewVersionView(latest)
		view.LatestVersion = &lv
	}
	if withVersions {
		for _, v := range t.Versions() {
			view.Versions = append(view.Versions, NewVersionView(v))
		}
	}
	return view
}

// SchemaFromVariables converts a job's inputSchema list into the domain form.
func SchemaFromVariables(entries []InputVariableInput) (domain.InputSchema, error) {
	if entries == nil {
		return nil, nil
	}
	schema := make(domain.InputSchema, 0, len(entries))
	for _, e := range entries {
		vt, err := domain.ParseVariableType(e.Type)
		if err != nil {
			return nil, errors.NewInvalidInputError(err.Error())
		}
		schema = append(schema, domain.InputVariable{Name: e.Name, Type: vt, Required: e.Required})
	}
	return schema, nil
}

// InputVariableInput is one inputSchema entry in a job payload.
type InputVariableInput struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

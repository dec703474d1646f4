package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TemplateQuery filters a tenant's templates. Channel and Status are optional.
type TemplateQuery struct {
	OrgID       string
	WorkspaceID string
	Channel     *Channel
	Status      *TemplateStatus
	Page        int
	Size        int
}

// Normalized clamps paging to sane bounds.
func (q TemplateQuery) Normalized() TemplateQuery {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	return q
}

// Offset is the number of rows to skip.
func (q TemplateQuery) Offset() int {
	return q.Page * q.Size
}

// Matches applies the tenant and optional filters in memory.
func (q TemplateQuery) Matches(t *NotificationTemplate) bool {
	if t.OrgID() != q.OrgID || t.WorkspaceID() != q.WorkspaceID {
		return false
	}
	if q.Channel != nil && t.Channel() != *q.Channel {
		return false
	}
	if q.Status != nil && t.Status() != *q.Status {
		return false
	}
	return true
}

// TemplatePage is one page of a TemplateQuery result.
type TemplatePage struct {
	Items []*NotificationTemplate
	Total int64
	Page  int
	Size  int
}

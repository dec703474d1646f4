package domain

import "time"

// TemplateStats is the per-template dispatch read model built from events.
type TemplateStats struct {
	TemplateID     string     `json:"templateId"`
	TemplateName   string     `json:"templateName"`
	TotalSent      int64      `json:"totalSent"`
	SuccessCount   int64      `json:"successCount"`
	ErrorCount     int64      `json:"errorCount"`
	LastExecutedAt *time.Time `json:"lastExecutedAt,omitempty"`
}

// EmptyStats is the view returned for a template nothing has been recorded for.
func EmptyStats(templateID string) *TemplateStats {
	return &TemplateStats{TemplateID: templateID}
}

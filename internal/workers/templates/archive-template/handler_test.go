package archivetemplate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"template-engine/internal/common/errors"
	"template-engine/internal/common/logger"
	"template-engine/internal/domain"
	"template-engine/internal/service"
	"template-engine/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	svc := service.NewTemplateService(service.Dependencies{
		Store:      memory.NewTemplateStore(),
		Executions: memory.NewExecutionLog(),
		Clock: func() time.Time {
			now = now.Add(time.Minute)
			return now
		},
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	h, err := NewHandler(HandlerOptions{Service: svc, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	tpl, err := svc.CreateTemplate(ctx, service.CreateTemplateCommand{
		Name: "welcome", Channel: domain.ChannelPush, OrgID: "o", WorkspaceID: "w",
	})
	require.NoError(t, err)

	first, err := h.Execute(ctx, &Input{TemplateID: tpl.ID()})
	require.NoError(t, err)
	assert.Equal(t, "ARCHIVED", first.Status)
	assert.Equal(t, "2026-05-01T10:02:00Z", first.ArchivedAt)

	again, err := h.Execute(ctx, &Input{TemplateID: tpl.ID()})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = h.Execute(ctx, &Input{TemplateID: "nope"})
	assert.Equal(t, errors.ErrCodeTemplateNotFound, errors.CodeOf(err))
}

// Package postgres stores template aggregates as one row each, with the
// version list in a JSONB column and a revision column for compare-and-swap.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "template-engine/internal/common/errors"
	"template-engine/internal/domain"

	"github.com/lib/pq"
)

//go:embed schema.sql
var Schema string

const selectColumns = `id, org_id, workspace_id, name, description, channel, status,
       versions, created_at, updated_at, deleted_at, revision`

const insertTemplate = `
	INSERT INTO notification_templates
		(id, org_id, workspace_id, name, description, channel, status,
		 versions, created_at, updated_at, deleted_at, revision)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
	ON CONFLICT (id) DO NOTHING`

const updateTemplate = `
	UPDATE notification_templates
	SET name = $2, description = $3, status = $4, versions = $5,
	    updated_at = $6, deleted_at = $7, revision = revision + 1
	WHERE id = $1 AND revision = $8`

type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// EnsureSchema creates the table and indexes when missing.
func (s *TemplateStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return classify("ensure schema", err)
	}
	return nil
}

func (s *TemplateStore) Save(ctx context.Context, t *domain.NotificationTemplate) error {
	snap := t.Snapshot()
	versions, err := json.Marshal(snap.Versions)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("encode versions", err)
	}

	var res sql.Result
	if snap.Revision == 0 {
		res, err = s.db.ExecContext(ctx, insertTemplate,
			snap.ID, snap.OrgID, snap.WorkspaceID, snap.Name, snap.Description,
			string(snap.Channel), string(snap.Status), versions,
			snap.CreatedAt, snap.UpdatedAt, nullTime(snap.DeletedAt),
		)
	} else {
		res, err = s.db.ExecContext(ctx, updateTemplate,
			snap.ID, snap.Name, snap.Description, string(snap.Status), versions,
			snap.UpdatedAt, nullTime(snap.DeletedAt), snap.Revision,
		)
	}
	if err != nil {
		return classify("save template", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify("save template", err)
	}
	if n == 0 {
		return apperrors.NewConcurrencyConflictError(snap.ID, snap.Revision)
	}

	t.MarkPersisted(snap.Revision + 1)
	return nil
}

func (s *TemplateStore) FindByID(ctx context.Context, id string) (*domain.NotificationTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM notification_templates WHERE id = $1`, id)

	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewTemplateNotFoundError(id)
	}
	if err != nil {
		return nil, classify("find template", err)
	}
	return t, nil
}

func (s *TemplateStore) FindAll(ctx context.Context, q domain.TemplateQuery) (*domain.TemplatePage, error) {
	q = q.Normalized()

	where := []string{"org_id = $1", "workspace_id = $2"}
	args := []interface{}{q.OrgID, q.WorkspaceID}
	if q.Channel != nil {
		args = append(args, string(*q.Channel))
		where = append(where, fmt.Sprintf("channel = $%d", len(args)))
	}
	if q.Status != nil {
		args = append(args, string(*q.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	filter := strings.Join(where, " AND ")

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_templates WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, classify("count templates", err)
	}

	page := &domain.TemplatePage{
		Items: []*domain.NotificationTemplate{},
		Total: total,
		Page:  q.Page,
		Size:  q.Size,
	}
	if total == 0 {
		return page, nil
	}

	listArgs := append(args, q.Size, q.Offset())
	query := fmt.Sprintf(`SELECT %s FROM notification_templates WHERE %s ORDER BY updated_at DESC, id LIMIT $%d OFFSET $%d`,
		selectColumns, filter, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, listArgs...)
	if err != nil {
		return nil, classify("list templates", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, classify("list templates", err)
		}
		page.Items = append(page.Items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list templates", err)
	}
	return page, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row scanner) (*domain.NotificationTemplate, error) {
	var (
		snap      domain.TemplateSnapshot
		channel   string
		status    string
		versions  []byte
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&snap.ID, &snap.OrgID, &snap.WorkspaceID, &snap.Name, &snap.Description,
		&channel, &status, &versions, &snap.CreatedAt, &snap.UpdatedAt, &deletedAt, &snap.Revision,
	)
	if err != nil {
		return nil, err
	}

	snap.Channel = domain.Channel(channel)
	snap.Status = domain.TemplateStatus(status)
	if deletedAt.Valid {
		d := deletedAt.Time
		snap.DeletedAt = &d
	}
	if err := json.Unmarshal(versions, &snap.Versions); err != nil {
		return nil, fmt.Errorf("decode versions of %s: %w", snap.ID, err)
	}
	return domain.RestoreTemplate(snap)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// classify maps driver errors onto the infrastructure codes. Connection
// exceptions (SQLSTATE class 08) are reported separately so callers can tell
// an unreachable database from a bad statement.
func classify(operation string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	return apperrors.NewQueryExecutionFailedError(operation, err)
}

package database

import (
	"context"
	"errors"
	"testing"

	"template-engine/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectPostgres(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
		wantErr string
	}{
		{name: "ping succeeds"},
		{name: "ping fails closes pool", pingErr: errors.New("connection refused"), wantErr: "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			mock.ExpectPing().WillReturnError(tt.pingErr)
			if tt.wantErr != "" {
				mock.ExpectClose()
			}

			client, err := connectPostgres(context.Background(), db, config.PostgresConfig{MaxConnections: 5, MaxIdle: 2})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, client)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 5, db.Stats().MaxOpenConnections)
				t.Cleanup(func() { client.Close() })
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresClient_TemplateStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	client := &PostgresClient{DB: db}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS notification_templates`).WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := client.TemplateStore(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, store)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS notification_templates`).WillReturnError(errors.New("permission denied"))
	_, err = client.TemplateStore(context.Background())
	assert.ErrorContains(t, err, "ensure schema")

	assert.NoError(t, mock.ExpectationsWereMet())
}

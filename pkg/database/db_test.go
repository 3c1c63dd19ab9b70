package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'UTC'", quoteLiteral("UTC"))
	assert.Equal(t, "'it''s'", quoteLiteral("it's"))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("DATABASE_MAX_CONNS", "12")
	cfg := ConfigFromEnv()
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN)
	assert.Equal(t, 12, cfg.MaxConns)
}

func TestApplySession(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	mock.ExpectExec("SET TIME ZONE 'Asia/Shanghai'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET client_encoding = 'UTF8'").WillReturnResult(sqlmock.NewResult(0, 0))

	err = applySession(context.Background(), db, Config{TimeZone: "Asia/Shanghai", ClientEncoding: "UTF8"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

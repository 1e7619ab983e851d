package job

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO failed_jobs (document_id, handler, payload, error) VALUES ($1, $2, $3, $4) RETURNING id, created_at, retries`)).
		WithArgs("doc-1", "ingest", []byte(`{"document_id":"doc-1"}`), "failed steps: extract").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "retries"}).AddRow("job-1", now, 0))

	j := &Job{
		DocumentID: "doc-1",
		Handler:    "ingest",
		Payload:    json.RawMessage(`{"document_id":"doc-1"}`),
		Error:      "failed steps: extract",
	}
	err = repo.Save(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, "job-1", j.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "document_id", "handler", "payload", "error", "retries", "created_at"}).
		AddRow("job-2", "doc-2", "ingest", []byte(`{}`), "err 2", 1, now).
		AddRow("job-1", "doc-1", "ingest", []byte(`{}`), "err 1", 0, now.Add(-time.Minute))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, document_id, handler, payload, error, retries, created_at FROM failed_jobs ORDER BY created_at DESC`)).
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, "doc-1", jobs[1].DocumentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM failed_jobs WHERE id = $1`)).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Delete(context.Background(), "job-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM failed_jobs`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

func newMockTransport(t *testing.T) (*Transport, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTransport(db), mock
}

func TestEnqueueDefaultUsesKindQueue(t *testing.T) {
	tr, mock := newMockTransport(t)

	mock.ExpectQuery("INSERT INTO messenger_messages").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "high", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := tr.EnqueueDefault(context.Background(), domain.JobSendEmail, map[string]string{"offerId": "o1"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueUnknownKind(t *testing.T) {
	tr, _ := newMockTransport(t)

	_, err := tr.EnqueueDefault(context.Background(), domain.JobKind("bogus"), nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestClaimEmptyQueue(t *testing.T) {
	tr, mock := newMockTransport(t)

	mock.ExpectQuery("WITH claimed AS").
		WithArgs("normal").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body", "headers", "queue_name", "created_at", "available_at", "delivered_at"}))

	job, err := tr.Claim(context.Background(), domain.QueueNormal)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestClaimReturnsJob(t *testing.T) {
	tr, mock := newMockTransport(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "body", "headers", "queue_name", "created_at", "available_at", "delivered_at"}).
		AddRow(int64(7), `{"type":"analyze_lead","payload":{"leadId":"L1"}}`, `{"type":"analyze_lead","retry_count":"1"}`, "normal", now, now, now)
	mock.ExpectQuery("WITH claimed AS").
		WithArgs("normal").
		WillReturnRows(rows)

	job, err := tr.Claim(context.Background(), domain.QueueNormal)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int64(7), job.ID)
	assert.Equal(t, domain.QueueNormal, job.Queue)
	assert.Equal(t, 1, RetryCount(job))
	require.NotNil(t, job.DeliveredAt)

	env, err := Decode(job)
	require.NoError(t, err)
	assert.Equal(t, domain.JobAnalyzeLead, env.Type)
}

func TestRetryIncrementsCounter(t *testing.T) {
	tr, mock := newMockTransport(t)

	job := &domain.Job{
		ID:      9,
		Queue:   domain.QueueHigh,
		Headers: map[string]string{"retry_count": "1"},
	}

	mock.ExpectExec("UPDATE messenger_messages").
		WithArgs(int64(9), int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, tr.Retry(context.Background(), job, 2*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveToFailedKeepsOriginQueue(t *testing.T) {
	tr, mock := newMockTransport(t)

	job := &domain.Job{ID: 3, Queue: domain.QueueHigh, Headers: map[string]string{}}

	mock.ExpectExec("UPDATE messenger_messages").
		WithArgs(int64(3), "failed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, tr.MoveToFailed(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedriveMovesBackToOrigin(t *testing.T) {
	tr, mock := newMockTransport(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "body", "headers", "queue_name", "created_at", "available_at", "delivered_at"}).
		AddRow(int64(11), `{"type":"send_email","payload":{}}`, `{"origin_queue":"high","retry_count":"3"}`, "failed", now, now, nil)
	mock.ExpectQuery("SELECT id, body, headers, queue_name").
		WithArgs("failed", 10).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE messenger_messages").
		WithArgs(int64(11), "high", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := tr.Redrive(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverStaleReleasesExpiredLeases(t *testing.T) {
	tr, mock := newMockTransport(t)

	mock.ExpectExec("UPDATE messenger_messages").
		WithArgs(int64(600), "failed").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := tr.RecoverStale(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDecodeMalformedBody(t *testing.T) {
	_, err := Decode(&domain.Job{Body: []byte("not json")})
	require.Error(t, err)
	assert.Equal(t, domain.KindPermanentFailure, domain.KindOf(err))

	_, err = Decode(&domain.Job{Body: []byte(`{"payload":{}}`)})
	require.Error(t, err)
	assert.Equal(t, domain.KindPermanentFailure, domain.KindOf(err))
}

func TestRetryCountDefaultsToZero(t *testing.T) {
	assert.Equal(t, 0, RetryCount(&domain.Job{Headers: map[string]string{}}))
	assert.Equal(t, 0, RetryCount(&domain.Job{Headers: map[string]string{"retry_count": "junk"}}))
	assert.Equal(t, 2, RetryCount(&domain.Job{Headers: map[string]string{"retry_count": "2"}}))
}

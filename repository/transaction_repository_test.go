package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/eastemblem/proofengine-payments/models"
	"github.com/eastemblem/proofengine-payments/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	assert.NoError(t, err)
	return gormDB, mock
}

func TestCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepo(gormDB)

	sessionID := "cs_test_123"
	url := "https://gateway.test/pay/ORD-1"
	record := &models.TransactionRecord{
		OrderReference:   "ORD-1",
		UserID:           "founder-1",
		Amount:           9900,
		Currency:         "usd",
		Purpose:          "proof-engine-report",
		Status:           models.TransactionPending,
		GatewaySessionID: &sessionID,
		GatewayURL:       &url,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "transaction_records"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), record)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByReference_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepo(gormDB)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"order_reference", "user_id", "amount", "currency", "purpose", "status", "created_at", "updated_at"}).
		AddRow("ORD-1", "founder-1", 9900, "usd", "proof-engine-report", models.TransactionPending, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "transaction_records"`)).
		WithArgs("ORD-1", 1).
		WillReturnRows(rows)

	record, err := repo.FindByReference(context.Background(), "ORD-1")
	assert.NoError(t, err)
	assert.Equal(t, "ORD-1", record.OrderReference)
	assert.Equal(t, models.TransactionPending, record.Status)
}

func TestFindByReference_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepo(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "transaction_records"`)).
		WithArgs("ORD-missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{}))

	record, err := repo.FindByReference(context.Background(), "ORD-missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, record)
}

func TestFindByIdempotencyKey_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepo(gormDB)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"order_reference", "user_id", "amount", "currency", "status", "idempotency_key", "created_at", "updated_at"}).
		AddRow("ORD-1", "founder-1", 9900, "usd", models.TransactionPending, "idem-1", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "transaction_records"`)).
		WithArgs("idem-1", 1).
		WillReturnRows(rows)

	record, err := repo.FindByIdempotencyKey(context.Background(), "idem-1")
	assert.NoError(t, err)
	assert.Equal(t, "ORD-1", record.OrderReference)
}

func TestFindByGatewaySessionID_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepo(gormDB)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"order_reference", "user_id", "amount", "currency", "status", "gateway_session_id", "created_at", "updated_at"}).
		AddRow("ORD-1", "founder-1", 9900, "usd", models.TransactionCompleted, "cs_test_123", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "transaction_records"`)).
		WithArgs("cs_test_123", 1).
		WillReturnRows(rows)

	record, err := repo.FindByGatewaySessionID(context.Background(), "cs_test_123")
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, record.Status)
}

func TestMarkStatus_GuardsOnPending(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepo(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "transaction_records"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.MarkStatus(context.Background(), "ORD-1", models.TransactionCompleted, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkStatus_TerminalRecordUntouched(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormTransactionRepo(gormDB)

	// The status guard matches no rows; the update silently does nothing.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "transaction_records"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	reason := "late failure"
	err := repo.MarkStatus(context.Background(), "ORD-1", models.TransactionFailed, &reason)
	assert.NoError(t, err)
}

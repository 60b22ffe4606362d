package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/bookkeeping-service/internal/ledger"
	"github.com/Dan9191/bookkeeping-service/internal/models"
	"github.com/Dan9191/bookkeeping-service/internal/money"
)

var columns = []string{"id", "name", "category", "icon", "color", "balance", "created_at", "updated_at"}

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func accountRow(id, name, balance string) *sqlmock.Rows {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(columns).AddRow(id, name, "bank", "", "", balance, created, created)
}

func TestGetAccount(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM bank\.accounts WHERE id = \$1`).
		WithArgs("a").
		WillReturnRows(accountRow("a", "Bank card", "876.55"))

	a, err := repo.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Bank card", a.Name)
	assert.True(t, a.Balance.Equal(money.MustParse("876.55")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM bank\.accounts WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrNoSuchAccount)
}

func TestSaveUnknownAccount(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`UPDATE bank\.accounts`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), models.Account{ID: "missing"})
	assert.ErrorIs(t, err, ledger.ErrNoSuchAccount)
}

func TestListAccounts(t *testing.T) {
	repo, mock := newMock(t)
	rows := accountRow("a", "A", "1000.00")
	rows.AddRow("b", "B", "bank", "", "", "500.00", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT (.+) FROM bank\.accounts ORDER BY created_at, id`).WillReturnRows(rows)

	accounts, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "b", accounts[1].ID)
}

func TestMigrate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS bank`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS bank\.accounts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS bank\.history`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferCommitsInOneTransaction(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bank\.accounts WHERE id = \$1 FOR UPDATE`).WithArgs("a").WillReturnRows(accountRow("a", "A", "1000.00"))
	mock.ExpectQuery(`FROM bank\.accounts WHERE id = \$1 FOR UPDATE`).WithArgs("b").WillReturnRows(accountRow("b", "B", "500.00"))
	mock.ExpectExec(`UPDATE bank\.accounts`).WithArgs("a", "A", "bank", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE bank\.accounts`).WithArgs("b", "B", "bank", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO bank\.history`).WithArgs("entry-1", "transfer", sqlmock.AnyArg(), "", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	logger, _ := test.NewNullLogger()
	engine := ledger.NewEngine(repo, repo, logger, ledger.WithIDGenerator(func() string { return "entry-1" }))

	res, err := engine.Transfer(context.Background(), ledger.TransferRequest{FromID: "a", ToID: "b", Amount: money.MustParse("123.45")})
	require.NoError(t, err)
	assert.Equal(t, "876.55", money.Format(res.FromAccount.Balance))
	assert.Equal(t, "623.45", money.Format(res.ToAccount.Balance))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRollsBackWhenHistoryFails(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("a").WillReturnRows(accountRow("a", "A", "1000.00"))
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("b").WillReturnRows(accountRow("b", "B", "500.00"))
	mock.ExpectExec(`UPDATE bank\.accounts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE bank\.accounts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO bank\.history`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	logger, _ := test.NewNullLogger()
	engine := ledger.NewEngine(repo, repo, logger)

	_, err := engine.Transfer(context.Background(), ledger.TransferRequest{FromID: "a", ToID: "b", Amount: money.MustParse("1")})
	assert.ErrorIs(t, err, ledger.ErrPersistenceFailure)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustUnknownAccountRollsBack(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("ghost").WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectRollback()

	logger, _ := test.NewNullLogger()
	engine := ledger.NewEngine(repo, repo, logger)

	_, err := engine.AdjustBalance(context.Background(), ledger.AdjustRequest{AccountID: "ghost", NewBalance: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryDecodesPayload(t *testing.T) {
	repo, mock := newMock(t)
	entry := models.HistoryEntry{
		ID:   "h1",
		Kind: models.EntryAdjustment,
		Adjustment: &models.AdjustmentRecord{
			AccountID:  "a",
			OldBalance: money.MustParse("1000"),
			NewBalance: money.MustParse("0"),
			Difference: money.MustParse("-1000"),
		},
	}
	payload, err := json.Marshal(entry)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT payload FROM bank\.history ORDER BY seq`).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	history, err := repo.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Adjustment)
	assert.Equal(t, "-1000.00", money.Format(history[0].Adjustment.Difference))
}

package test_utils

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

// MockDB pairs a sqlx handle with its sqlmock controller for repository
// tests that do not need a running database.
type MockDB struct {
	DB   *sqlx.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a sqlmock-backed *sqlx.DB using the pgx driver name, so
// sqlx.Rebind produces $n placeholders exactly like production. Unmet
// expectations fail the test on cleanup.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	mockDB := &MockDB{DB: sqlx.NewDb(db, "pgx"), Mock: mock}

	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled mock expectations: %v", err)
		}
		mockDB.DB.Close()
	})
	return mockDB
}

// ExpectQuery expects a query containing the given literal SQL fragment.
func (m *MockDB) ExpectQuery(fragment string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(fragment))
}

// ExpectExec expects a statement containing the given literal SQL fragment.
func (m *MockDB) ExpectExec(fragment string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(fragment))
}

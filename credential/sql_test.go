package credential

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSQLStorageRejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	if _, err := NewSQLStorage(db, "creds; drop table users"); err == nil {
		t.Fatal("expected invalid table name error")
	}
}

func TestSQLStorageSetManyInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	storage, err := NewSQLStorage(db, "")
	if err != nil {
		t.Fatalf("NewSQLStorage: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("insert into session_credentials").WithArgs("access_token", "A1").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into session_credentials").WithArgs("refresh_token", "R1").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := NewStore(storage)
	if err := s.Set(context.Background(), "A1", "R1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if s.Degraded() {
		t.Fatal("store should not degrade on success")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStorageLoadPair(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	storage, _ := NewSQLStorage(db, "creds")

	mock.ExpectQuery("select value from creds where key").WithArgs("access_token").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("A1"))
	mock.ExpectQuery("select value from creds where key").WithArgs("refresh_token").
		WillReturnError(sql.ErrNoRows)

	p := NewStore(storage).Load(context.Background())
	if p.Access != "A1" || p.Refresh != "" {
		t.Fatalf("unexpected pair %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStorageRollbackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	storage, _ := NewSQLStorage(db, "")

	mock.ExpectBegin()
	mock.ExpectExec("insert into session_credentials").WithArgs("access_token", "A1").WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	err = storage.SetMany(context.Background(), map[string]string{"access_token": "A1", "refresh_token": "R1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStorageRemoveAndSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	storage, _ := NewSQLStorage(db, "")

	mock.ExpectExec("create table if not exists session_credentials").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("delete from session_credentials").WithArgs("access_token").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from session_credentials").WithArgs("refresh_token").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	if err := storage.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := storage.Remove(ctx, "access_token", "refresh_token"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

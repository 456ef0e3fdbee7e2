package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func expectEnsureTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec("create table if not exists loanforge_schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists loanforge_schema_seeds").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpAppliesPendingScriptsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	dir := t.TempDir()
	writeScript(t, dir, "0002_history.up.sql", "create table loan_history (id text);")
	writeScript(t, dir, "0001_loans.up.sql", "create table loan_applications (id text);")
	writeScript(t, dir, "0001_loans.down.sql", "drop table loan_applications;")

	expectEnsureTables(mock)
	mock.ExpectQuery("select name from loanforge_schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_loans.up.sql"))

	// Only the pending 0002 script runs, inside its own transaction.
	mock.ExpectBegin()
	mock.ExpectExec("create table loan_history").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("insert into loanforge_schema_migrations").
		WithArgs("0002_history.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mgr := NewManager(db, dir, "")
	if err := mgr.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpRecordsNothingWhenScriptFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	dir := t.TempDir()
	writeScript(t, dir, "0001_broken.up.sql", "create table nope (;")

	expectEnsureTables(mock)
	mock.ExpectQuery("select name from loanforge_schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("create table nope").
		WillReturnError(os.ErrInvalid)
	mock.ExpectRollback()

	mgr := NewManager(db, dir, "")
	if err := mgr.Up(context.Background()); err == nil {
		t.Fatal("expected failure from broken script")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("insert into t values ('a;b'); create table x (id int);")
	if len(stmts) != 2 {
		t.Fatalf("statements = %d, want 2: %q", len(stmts), stmts)
	}
}

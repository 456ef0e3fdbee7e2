package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"loanforge.org/internal/auth"
	"loanforge.org/internal/loan"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestApplyTransitionSuccess(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	rec := loan.HistoryRecord{
		ID:         "hist-1",
		LoanID:     "loan-1",
		ActorID:    "user-1",
		Action:     "REVIEW",
		FromStatus: loan.StatusSubmitted,
		ToStatus:   loan.StatusInReview,
		CreatedAt:  now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("update loan_applications").
		WithArgs("IN_REVIEW", "loan-1", "SUBMITTED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into loan_history").
		WithArgs("hist-1", "loan-1", "user-1", "REVIEW", "SUBMITTED", "IN_REVIEW", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("select id, owner_id, product_id, currency, amount, status, created_at, updated_at").
		WithArgs("loan-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner_id", "product_id", "currency", "amount", "status", "created_at", "updated_at"},
		).AddRow("loan-1", "member-9", "product-1", "IDR", int64(100), "IN_REVIEW", now, now))
	mock.ExpectCommit()

	app, err := s.ApplyTransition(context.Background(), "loan-1", loan.StatusSubmitted, loan.StatusInReview, rec)
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if app.Status != loan.StatusInReview {
		t.Fatalf("unexpected status: %s", app.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyTransitionHistoryFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	rec := loan.HistoryRecord{
		ID:         "hist-1",
		LoanID:     "loan-1",
		ActorID:    "user-1",
		Action:     "REVIEW",
		FromStatus: loan.StatusSubmitted,
		ToStatus:   loan.StatusInReview,
		CreatedAt:  now,
	}

	// The status update succeeds, then the history append fails. The whole
	// transaction rolls back: a transition without its history record must
	// never become observable.
	mock.ExpectBegin()
	mock.ExpectExec("update loan_applications").
		WithArgs("IN_REVIEW", "loan-1", "SUBMITTED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into loan_history").
		WithArgs("hist-1", "loan-1", "user-1", "REVIEW", "SUBMITTED", "IN_REVIEW", now).
		WillReturnError(errors.New("history insert failed"))
	mock.ExpectRollback()

	_, err := s.ApplyTransition(context.Background(), "loan-1", loan.StatusSubmitted, loan.StatusInReview, rec)
	if err == nil {
		t.Fatal("expected error from failed history append")
	}
	if errors.Is(err, loan.ErrIllegalState) || errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("infrastructure failure must not map to a domain error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyTransitionStaleSource(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("update loan_applications").
		WithArgs("IN_REVIEW", "loan-1", "SUBMITTED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select exists").
		WithArgs("loan-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := s.ApplyTransition(context.Background(), "loan-1", loan.StatusSubmitted, loan.StatusInReview, loan.HistoryRecord{})
	if !errors.Is(err, loan.ErrIllegalState) {
		t.Fatalf("expected ErrIllegalState, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyTransitionMissingLoan(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("update loan_applications").
		WithArgs("IN_REVIEW", "loan-404", "SUBMITTED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select exists").
		WithArgs("loan-404").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := s.ApplyTransition(context.Background(), "loan-404", loan.StatusSubmitted, loan.StatusInReview, loan.HistoryRecord{})
	if !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindPrincipalBySubject(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select active from users").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"active"}).AddRow(true))
	mock.ExpectQuery("select role from user_roles").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("MARKETING").AddRow("marketing"))

	p, err := s.FindPrincipalBySubject(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("FindPrincipalBySubject: %v", err)
	}
	if !p.Active || !p.HasRole("MARKETING") {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if len(p.RoleList()) != 1 {
		t.Fatalf("roles not deduplicated: %v", p.RoleList())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindPrincipalBySubjectMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select active from users").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"active"}))

	_, err := s.FindPrincipalBySubject(context.Background(), "ghost")
	if !errors.Is(err, auth.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetApplicationNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("select id, owner_id, product_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetApplication(context.Background(), "missing")
	if !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

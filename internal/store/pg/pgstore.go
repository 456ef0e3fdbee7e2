package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"loanforge.org/internal/loan"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements loan.Store and auth.Resolver on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ loan.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool settings tuned for request-scoped
// lookups.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection (tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) CreateApplication(ctx context.Context, app *loan.Application) error {
	_, err := s.db.ExecContext(ctx, `
		insert into loan_applications (id, owner_id, product_id, currency, amount, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, app.ID, app.OwnerID, app.ProductID, app.Currency, app.Amount, string(app.Status), app.CreatedAt, app.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return loan.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (loan.Application, error) {
	var (
		app    loan.Application
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, owner_id, product_id, currency, amount, status, created_at, updated_at
		from loan_applications
		where id = $1
	`, id).Scan(&app.ID, &app.OwnerID, &app.ProductID, &app.Currency, &app.Amount, &status, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return loan.Application{}, loan.ErrNotFound
	}
	if err != nil {
		return loan.Application{}, err
	}
	app.Status = loan.Status(status)
	return app, nil
}

func (s *Store) ListByStatus(ctx context.Context, statuses ...loan.Status) ([]loan.Application, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(st)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select id, owner_id, product_id, currency, amount, status, created_at, updated_at
		from loan_applications
		where status in (%s)
		order by created_at asc
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loan.Application
	for rows.Next() {
		var (
			app    loan.Application
			status string
		)
		if err := rows.Scan(&app.ID, &app.OwnerID, &app.ProductID, &app.Currency, &app.Amount, &status, &app.CreatedAt, &app.UpdatedAt); err != nil {
			return nil, err
		}
		app.Status = loan.Status(status)
		result = append(result, app)
	}
	return result, rows.Err()
}

// ApplyTransition performs the status compare-and-set and the history append
// inside one transaction. The conditional update serializes concurrent
// attempts: the loser matches zero rows and gets loan.ErrIllegalState.
func (s *Store) ApplyTransition(ctx context.Context, loanID string, from, to loan.Status, rec loan.HistoryRecord) (loan.Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return loan.Application{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update loan_applications
		set status = $1, updated_at = now()
		where id = $2 and status = $3
	`, string(to), loanID, string(from))
	if err != nil {
		return loan.Application{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return loan.Application{}, err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from loan_applications where id = $1)`, loanID,
		).Scan(&exists); err != nil {
			return loan.Application{}, err
		}
		if !exists {
			return loan.Application{}, loan.ErrNotFound
		}
		return loan.Application{}, loan.ErrIllegalState
	}

	if _, err := tx.ExecContext(ctx, `
		insert into loan_history (id, loan_id, actor_id, action, from_status, to_status, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.LoanID, rec.ActorID, rec.Action, string(rec.FromStatus), string(rec.ToStatus), rec.CreatedAt); err != nil {
		return loan.Application{}, err
	}

	var (
		app    loan.Application
		status string
	)
	if err := tx.QueryRowContext(ctx, `
		select id, owner_id, product_id, currency, amount, status, created_at, updated_at
		from loan_applications
		where id = $1
	`, loanID).Scan(&app.ID, &app.OwnerID, &app.ProductID, &app.Currency, &app.Amount, &status, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return loan.Application{}, err
	}
	app.Status = loan.Status(status)

	if err := tx.Commit(); err != nil {
		return loan.Application{}, err
	}
	return app, nil
}

func (s *Store) History(ctx context.Context, loanID string) ([]loan.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, loan_id, actor_id, action, from_status, to_status, created_at
		from loan_history
		where loan_id = $1
		order by created_at asc, id asc
	`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loan.HistoryRecord
	for rows.Next() {
		var (
			rec      loan.HistoryRecord
			from, to string
		)
		if err := rows.Scan(&rec.ID, &rec.LoanID, &rec.ActorID, &rec.Action, &from, &to, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.FromStatus = loan.Status(from)
		rec.ToStatus = loan.Status(to)
		result = append(result, rec)
	}
	return result, rows.Err()
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

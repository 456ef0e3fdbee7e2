package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"loanforge.org/internal/auth"
)

var _ auth.Resolver = (*Store)(nil)

// FindPrincipalBySubject resolves a verified subject id to a principal with
// its role set. Indexed single-row plus role lookup, bounded latency.
func (s *Store) FindPrincipalBySubject(ctx context.Context, subject string) (auth.Principal, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return auth.Principal{}, auth.ErrPrincipalNotFound
	}

	var active bool
	err := s.db.QueryRowContext(ctx,
		`select active from users where id = $1`, subject,
	).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Principal{}, auth.ErrPrincipalNotFound
	}
	if err != nil {
		return auth.Principal{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`select role from user_roles where user_id = $1`, subject)
	if err != nil {
		return auth.Principal{}, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return auth.Principal{}, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return auth.Principal{}, err
	}
	return auth.NewPrincipal(subject, roles, active), nil
}

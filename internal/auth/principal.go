package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Principal is a resolved identity with its authorization attributes.
type Principal struct {
	ID     string
	Roles  map[string]struct{}
	Active bool
}

// NewPrincipal constructs a principal with a normalized role set.
func NewPrincipal(id string, roles []string, active bool) Principal {
	set := make(map[string]struct{}, len(roles))
	for _, role := range NormalizeRoles(roles) {
		set[role] = struct{}{}
	}
	return Principal{ID: id, Roles: set, Active: active}
}

// HasRole reports whether the principal holds the role (case-insensitive).
func (p Principal) HasRole(role string) bool {
	role = strings.TrimSpace(strings.ToUpper(role))
	if role == "" {
		return false
	}
	_, ok := p.Roles[role]
	return ok
}

// RoleList returns the held roles in sorted order.
func (p Principal) RoleList() []string {
	out := make([]string, 0, len(p.Roles))
	for role := range p.Roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// Resolver maps a verified subject identifier to a principal. Storage is an
// external collaborator; implementations must answer in bounded time.
type Resolver interface {
	FindPrincipalBySubject(ctx context.Context, subject string) (Principal, error)
}

// StaticResolver is an in-memory Resolver for tests and dev mode.
type StaticResolver struct {
	mu         sync.RWMutex
	principals map[string]Principal
}

// NewStaticResolver creates an empty resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{principals: make(map[string]Principal)}
}

// Put registers or replaces a principal keyed by its subject id.
func (r *StaticResolver) Put(p Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.principals[p.ID] = p
}

// FindPrincipalBySubject implements Resolver.
func (r *StaticResolver) FindPrincipalBySubject(_ context.Context, subject string) (Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.principals[strings.TrimSpace(subject)]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

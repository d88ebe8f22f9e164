package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"skillreel.org/internal/auth"
)

// RoleRegistry implements auth.Registry on the roles table. Bootstrap
// admins configured at startup authorize regardless of table contents.
type RoleRegistry struct {
	db        *sql.DB
	bootstrap map[string]struct{}
}

var _ auth.Registry = (*RoleRegistry)(nil)

// NewRoleRegistry builds a registry over the store's database handle.
func NewRoleRegistry(db *sql.DB, bootstrapAdmins []string) *RoleRegistry {
	boot := make(map[string]struct{}, len(bootstrapAdmins))
	for _, id := range bootstrapAdmins {
		if id = strings.TrimSpace(id); id != "" {
			boot[id] = struct{}{}
		}
	}
	return &RoleRegistry{db: db, bootstrap: boot}
}

func (r *RoleRegistry) Assign(ctx context.Context, actor, target string, role auth.Role) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return auth.ErrInvalidRole
	}
	if _, err := auth.ParseRole(string(role)); err != nil {
		return err
	}

	ok, err := r.IsAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ErrUnauthorized
	}

	_, err = r.db.ExecContext(ctx, `
		insert into roles(identity, role)
		values ($1, $2)
		on conflict (identity) do update set role = excluded.role, updated_at = now()
	`, target, string(role))
	return err
}

func (r *RoleRegistry) Role(ctx context.Context, identity string) (auth.Role, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `select role from roles where identity = $1`, identity).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		if _, ok := r.bootstrap[identity]; ok {
			return auth.RoleAdmin, nil
		}
		return auth.DefaultRole, nil
	}
	if err != nil {
		return "", err
	}
	return auth.Role(raw), nil
}

func (r *RoleRegistry) IsAdmin(ctx context.Context, identity string) (bool, error) {
	if _, ok := r.bootstrap[identity]; ok {
		return true, nil
	}
	role, err := r.Role(ctx, identity)
	if err != nil {
		return false, err
	}
	return role == auth.RoleAdmin, nil
}

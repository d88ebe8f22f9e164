package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Role is the platform-wide authorization level of an identity.
// One role per identity; assigning a new role replaces the prior one.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// DefaultRole applies to any identity with no explicit assignment.
// Guest is the least-privileged variant.
const DefaultRole = RoleGuest

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrInvalidRole  = errors.New("auth: invalid role")
)

// ParseRole validates a caller-supplied role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	case RoleGuest:
		return RoleGuest, nil
	default:
		return "", ErrInvalidRole
	}
}

// Registry maps identities to roles and gates assignment to admins.
type Registry interface {
	// Assign records target's role. Fails with ErrUnauthorized unless
	// actor currently holds the admin role.
	Assign(ctx context.Context, actor, target string, role Role) error
	// Role returns the assigned role or DefaultRole.
	Role(ctx context.Context, identity string) (Role, error)
	// IsAdmin reports whether identity currently holds the admin role.
	IsAdmin(ctx context.Context, identity string) (bool, error)
}

// InMemoryRegistry keeps assignments in a map. Bootstrap admins come
// from configuration and authorize regardless of registry state, so the
// system cannot revoke its way into having no admin at all.
type InMemoryRegistry struct {
	mu        sync.RWMutex
	roles     map[string]Role
	bootstrap map[string]struct{}
}

// NewInMemoryRegistry creates a registry with the given bootstrap admins.
func NewInMemoryRegistry(bootstrapAdmins []string) *InMemoryRegistry {
	boot := make(map[string]struct{}, len(bootstrapAdmins))
	for _, id := range bootstrapAdmins {
		id = strings.TrimSpace(id)
		if id != "" {
			boot[id] = struct{}{}
		}
	}
	return &InMemoryRegistry{
		roles:     make(map[string]Role),
		bootstrap: boot,
	}
}

func (r *InMemoryRegistry) Assign(ctx context.Context, actor, target string, role Role) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return ErrInvalidRole
	}
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isAdminLocked(actor) {
		return ErrUnauthorized
	}
	r.roles[target] = role
	return nil
}

func (r *InMemoryRegistry) Role(ctx context.Context, identity string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if role, ok := r.roles[identity]; ok {
		return role, nil
	}
	if _, ok := r.bootstrap[identity]; ok {
		return RoleAdmin, nil
	}
	return DefaultRole, nil
}

func (r *InMemoryRegistry) IsAdmin(ctx context.Context, identity string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isAdminLocked(identity), nil
}

func (r *InMemoryRegistry) isAdminLocked(identity string) bool {
	if _, ok := r.bootstrap[identity]; ok {
		return true
	}
	return r.roles[identity] == RoleAdmin
}

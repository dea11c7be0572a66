package service

import "ampa/internal/models"

// RequireAuthenticated passes any resolved identity
func RequireAuthenticated(actor *models.User) (*models.User, error) {
	if actor == nil || !actor.Role.Valid() {
		return nil, ErrUnauthorized
	}
	return actor, nil
}

// RequireAdmin passes ADMIN and SUPERADMIN
func RequireAdmin(actor *models.User) (*models.User, error) {
	return requireRole(actor, models.RoleAdmin)
}

// RequireSuperAdmin passes SUPERADMIN only
func RequireSuperAdmin(actor *models.User) (*models.User, error) {
	return requireRole(actor, models.RoleSuperAdmin)
}

func requireRole(actor *models.User, min models.Role) (*models.User, error) {
	if actor == nil || !actor.Role.AtLeast(min) {
		return nil, ErrUnauthorized
	}
	return actor, nil
}

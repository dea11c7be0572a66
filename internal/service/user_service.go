package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ampa/internal/models"
	"ampa/internal/repository"
	"ampa/internal/security"
	"ampa/internal/validation"
)

// UserInput is the writable part of an account. Password may be empty on
// update to keep the current one.
type UserInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// UserService administers operator accounts
type UserService struct {
	userRepo *repository.UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (in *UserInput) normalise() (models.Role, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)

	if err := validation.ValidateUsername(in.Username); err != nil {
		return "", err
	}
	if err := validation.ValidateName(in.Name); err != nil {
		return "", err
	}
	return validation.ValidateRole(in.Role)
}

// List returns all accounts ordered by username
func (s *UserService) List(ctx context.Context, actor *models.User) ([]models.User, error) {
	if _, err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	users, err := s.userRepo.GetAllUsers(ctx)
	if err != nil {
		return nil, storageFault("list users", err)
	}
	return users, nil
}

// Create adds an account
func (s *UserService) Create(ctx context.Context, actor *models.User, input UserInput) (*models.User, error) {
	if _, err := RequireSuperAdmin(actor); err != nil {
		return nil, err
	}

	role, err := input.normalise()
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetUserByUsername(ctx, input.Username)
	if err != nil {
		return nil, storageFault("check username", err)
	}
	if existing != nil {
		return nil, conflict("username already taken")
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		Name:         input.Name,
		Role:         role,
		PasswordHash: passwordHash,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if isDuplicate(err) {
			return nil, conflict("username already taken")
		}
		return nil, storageFault("create user", err)
	}

	log.Printf("User %q created by %q with role %s", user.Username, actor.Username, user.Role)
	return user, nil
}

// Update replaces username, name and role. The password is only changed
// when one is supplied.
func (s *UserService) Update(ctx context.Context, actor *models.User, id int64, input UserInput) (*models.User, error) {
	if _, err := RequireSuperAdmin(actor); err != nil {
		return nil, err
	}

	role, err := input.normalise()
	if err != nil {
		return nil, err
	}
	if input.Password != "" {
		if err := validation.ValidatePassword(input.Password); err != nil {
			return nil, err
		}
	}

	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, storageFault("get user", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	other, err := s.userRepo.GetUserByUsername(ctx, input.Username)
	if err != nil {
		return nil, storageFault("check username", err)
	}
	if other != nil && other.ID != id {
		return nil, conflict("username already taken")
	}

	user.Username = input.Username
	user.Name = input.Name
	user.Role = role
	user.PasswordHash = ""
	if input.Password != "" {
		if user.PasswordHash, err = security.HashPassword(input.Password); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	found, err := s.userRepo.UpdateUser(ctx, user)
	if err != nil {
		if isDuplicate(err) {
			return nil, conflict("username already taken")
		}
		return nil, storageFault("update user", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	user.PasswordHash = ""
	return user, nil
}

// Delete removes an account. Nobody can delete their own account.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if _, err := RequireSuperAdmin(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return ErrSelfDelete
	}

	target, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return storageFault("get user", err)
	}
	if target == nil {
		return ErrNotFound
	}
	if target.Username == actor.Username {
		return ErrSelfDelete
	}

	deleted, err := s.userRepo.DeleteUser(ctx, id)
	if err != nil {
		return storageFault("delete user", err)
	}
	if !deleted {
		return ErrNotFound
	}

	log.Printf("User %q deleted by %q", target.Username, actor.Username)
	return nil
}

// EnsureBootstrapAdmin creates the first SUPERADMIN when there are no
// accounts yet. It does nothing when credentials are not configured.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context, username, password, name string) (*models.User, error) {
	count, err := s.userRepo.CountUsers(ctx)
	if err != nil {
		return nil, storageFault("count users", err)
	}
	if count > 0 {
		return nil, nil
	}
	if username == "" || password == "" {
		log.Println("No users exist and BOOTSTRAP_ADMIN_USERNAME/BOOTSTRAP_ADMIN_PASSWORD are not set")
		return nil, nil
	}

	input := UserInput{Username: username, Name: name, Role: string(models.RoleSuperAdmin), Password: password}
	role, err := input.normalise()
	if err != nil {
		return nil, fmt.Errorf("invalid bootstrap admin: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid bootstrap admin: %w", err)
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Username: input.Username, Name: input.Name, Role: role, PasswordHash: passwordHash}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, storageFault("create bootstrap admin", err)
	}

	log.Printf("Created bootstrap administrator %q", user.Username)
	return user, nil
}

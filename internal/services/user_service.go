package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yukikurage/task-assignment-api/internal/models"
	"github.com/yukikurage/task-assignment-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidRole         = errors.New("invalid role")
	ErrAdminPasswordChange = errors.New("cannot change password for administrator accounts")
	ErrUserHasTasks        = errors.New("user is referenced by tasks")
	ErrAssigneePromotion   = errors.New("cannot promote a user with assigned tasks")
	ErrNoFieldsToUpdate    = errors.New("no valid fields to update")
)

// UserService handles account business logic.
type UserService struct {
	userRepo repository.UserRepository
	taskRepo repository.TaskRepository
	log      zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, taskRepo repository.TaskRepository, log zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		taskRepo: taskRepo,
		log:      log.With().Str("component", "user_service").Logger(),
	}
}

// CreateUserInput holds the fields of a new account.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// UpdateUserInput holds the account fields that may change. Nil means unchanged.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Role     *models.Role
	Password *string
}

func (in UpdateUserInput) empty() bool {
	return in.Username == nil && in.Email == nil && in.Role == nil && in.Password == nil
}

// Create validates and stores a new account.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if err := s.ensureUnique(ctx, 0, &username, &email); err != nil {
		return nil, err
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info().Uint64("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")
	return user, nil
}

// Register creates a regular account. The role cannot be chosen.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.Create(ctx, CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleUser,
	})
}

// Authenticate verifies credentials. Unknown e-mail and wrong password are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// FindByID returns the user or nil when absent.
func (s *UserService) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	return optional(user, err)
}

// FindByEmail returns the user or nil when absent.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	return optional(user, err)
}

// FindByUsername returns the user or nil when absent.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	return optional(user, err)
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// List returns all users, or the users with the given role.
func (s *UserService) List(ctx context.Context, role *models.Role) ([]models.User, error) {
	if role != nil && !role.Valid() {
		return nil, ErrInvalidRole
	}

	users, err := s.userRepo.List(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update applies the provided fields to an account.
func (s *UserService) Update(ctx context.Context, id uint64, input UpdateUserInput) (*models.User, error) {
	if input.empty() {
		return nil, ErrNoFieldsToUpdate
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}

	var username, email *string
	if input.Username != nil {
		v := strings.TrimSpace(*input.Username)
		if err := validateUsername(v); err != nil {
			return nil, err
		}
		if v != user.Username {
			username = &v
			fields["username"] = v
		}
	}
	if input.Email != nil {
		v := strings.TrimSpace(*input.Email)
		if err := validateEmail(v); err != nil {
			return nil, err
		}
		if v != user.Email {
			email = &v
			fields["email"] = v
		}
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, ErrInvalidRole
		}
		// Administrators may not be task assignees.
		if *input.Role == models.RoleAdmin && !user.IsAdmin() {
			assigned, err := s.taskRepo.Count(ctx, repository.TaskFilter{AssignedTo: &id})
			if err != nil {
				return nil, fmt.Errorf("failed to count assigned tasks: %w", err)
			}
			if assigned > 0 {
				return nil, ErrAssigneePromotion
			}
		}
		fields["role"] = string(*input.Role)
	}
	if input.Password != nil {
		if user.IsAdmin() {
			return nil, ErrAdminPasswordChange
		}
		if err := validatePassword(*input.Password); err != nil {
			return nil, err
		}
		hash, err := hashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hash
	}

	if err := s.ensureUnique(ctx, id, username, email); err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		if _, err := s.userRepo.Update(ctx, id, fields); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrUserExists
			}
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	return s.GetUser(ctx, id)
}

// UpdatePassword resets the password of any account, administrators included.
func (s *UserService) UpdatePassword(ctx context.Context, id uint64, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	rows, err := s.userRepo.UpdatePassword(ctx, id, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	s.log.Info().Uint64("user_id", id).Msg("password updated")
	return nil
}

// Delete removes an account that no task references.
func (s *UserService) Delete(ctx context.Context, id uint64) (bool, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return false, err
	}

	count, err := s.taskRepo.CountByUser(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to count user tasks: %w", err)
	}
	if count > 0 {
		return false, ErrUserHasTasks
	}

	rows, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return false, ErrUserHasTasks
		}
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	if rows == 0 {
		return false, ErrUserNotFound
	}

	s.log.Info().Uint64("user_id", id).Msg("user deleted")
	return true, nil
}

// IsAdmin reports whether the user exists and is an administrator. Lookup
// failures count as false.
func (s *UserService) IsAdmin(ctx context.Context, id uint64) bool {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error().Err(err).Uint64("user_id", id).Msg("failed to check admin role")
		}
		return false
	}
	return user.IsAdmin()
}

// GetStats counts users per role.
func (s *UserService) GetStats(ctx context.Context) (repository.UserStats, error) {
	stats, err := s.userRepo.Stats(ctx)
	if err != nil {
		return repository.UserStats{}, fmt.Errorf("failed to get user stats: %w", err)
	}
	return stats, nil
}

// EnsureAdmin creates the bootstrap administrator unless an account with the
// e-mail already exists. It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	if _, err := s.Create(ctx, CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	}); err != nil {
		return false, fmt.Errorf("failed to create admin account: %w", err)
	}
	return true, nil
}

// ensureUnique rejects a username or e-mail held by an account other than id.
func (s *UserService) ensureUnique(ctx context.Context, id uint64, username, email *string) error {
	if username != nil {
		existing, err := s.FindByUsername(ctx, *username)
		if err != nil {
			return fmt.Errorf("failed to check username: %w", err)
		}
		if existing != nil && existing.ID != id {
			return ErrUserExists
		}
	}
	if email != nil {
		existing, err := s.FindByEmail(ctx, *email)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil && existing.ID != id {
			return ErrUserExists
		}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// optional turns a not-found lookup into (nil, nil).
func optional[T any](v *T, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yukikurage/task-assignment-api/internal/constants"
)

// ErrValidation matches every ValidationError
var ErrValidation = errors.New("validation failed")

// ValidationError is an input rule violation whose message is safe to show
// to the client
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var (
	usernamePattern = regexp.MustCompile(fmt.Sprintf(`^[a-zA-Z0-9_]{%d,%d}$`,
		constants.MinUsernameLength, constants.MaxUsernameLength))

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

func validateUsername(username string) error {
	if err := validate.Var(username, "required,username"); err != nil {
		return invalid("Username must be %d-%d characters and contain only letters, numbers and underscores",
			constants.MinUsernameLength, constants.MaxUsernameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return invalid("Invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < constants.MinPasswordLength {
		return invalid("Password must be at least %d characters", constants.MinPasswordLength)
	}
	if len(password) > constants.MaxPasswordBytes {
		return invalid("Password must be at most %d bytes", constants.MaxPasswordBytes)
	}
	return nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrTitleRequired
	}
	if len([]rune(title)) > constants.MaxTaskTitleLength {
		return "", invalid("Title must be at most %d characters", constants.MaxTaskTitleLength)
	}
	return title, nil
}

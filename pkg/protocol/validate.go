package protocol

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/NicolasHaas/sosmeet/pkg/model"
)

// UsernameTooShortMessage is the error text sent for an unusable login name.
const UsernameTooShortMessage = "Username must be at least 3 characters."

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report wire names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validator exposes the shared validator so other packages can check single
// values with the same rules (for example alarm field policies).
func Validator() *validator.Validate {
	return validate
}

// ValidationError is a rejected command field. Its message is shown to the
// client verbatim.
type ValidationError struct {
	Command string // set when the error comes from DecodeCommand
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks a decoded command. It returns nil or a *ValidationError.
func Validate(cmd Command) error {
	if login, ok := cmd.(Login); ok {
		if err := model.ValidateUsername(login.Username); err != nil {
			msg := err.Error()
			if errors.Is(err, model.ErrUsernameEmpty) || errors.Is(err, model.ErrUsernameTooShort) {
				msg = UsernameTooShortMessage
			}
			return &ValidationError{Field: "username", Message: msg, Err: err}
		}
		return nil
	}

	if err := validate.Struct(cmd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Field(), Message: fieldMessage(fe), Err: err}
		}
		return &ValidationError{Message: err.Error(), Err: err}
	}

	switch c := cmd.(type) {
	case AddFriend:
		if err := model.ValidateUsername(c.Friend); err != nil {
			return &ValidationError{Field: "friend", Message: err.Error(), Err: err}
		}
	case AddMember:
		if err := model.ValidateUsername(c.Member); err != nil {
			return &ValidationError{Field: "member", Message: err.Error(), Err: err}
		}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "hexcolor":
		return fmt.Sprintf("%s must be a hex color", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

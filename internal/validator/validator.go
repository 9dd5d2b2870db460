package validator

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
)

var (
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
)

const minPasswordLen = 8

var validate = newValidate()

func newValidate() *playground.Validate {
	v := playground.New(playground.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl playground.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl playground.FieldLevel) bool {
		return len(fl.Field().String()) >= minPasswordLen
	})
	_ = v.RegisterValidation("account_type", func(fl playground.FieldLevel) bool {
		switch fl.Field().String() {
		case "bank", "revenue", "expense", "other":
			return true
		}
		return false
	})
	return v
}

// FieldErrors maps a json field name to the rule it failed.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for field, rule := range f {
		fields = append(fields, field+" "+rule)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}

// Struct checks `validate` tags on a request body. A nil return means valid.
func Struct(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var validationErrors playground.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	out := make(FieldErrors, len(validationErrors))
	for _, ve := range validationErrors {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return ErrInvalidPassword
	}
	return nil
}

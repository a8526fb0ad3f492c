package api

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/KeremAR/Microservice/pkg/apperr"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the custom binding tags used by the request
// models to gin's validator. Safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		for tag, fn := range map[string]validator.Func{
			"realemail":      realEmail,
			"strongpassword": strongPassword,
			"phone":          phone,
		} {
			if err := v.RegisterValidation(tag, fn); err != nil {
				registerErr = err
				return
			}
		}
	})
	return registerErr
}

func realEmail(fl validator.FieldLevel) bool {
	return !strings.HasSuffix(strings.ToLower(fl.Field().String()), "@example.com")
}

func strongPassword(fl validator.FieldLevel) bool {
	pw := fl.Field().String()
	if len(pw) < 8 {
		return false
	}
	var upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && digit
}

func phone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

var fieldMessages = map[string]string{
	"required":       "is required",
	"email":          "must be a valid email address",
	"realemail":      "Please use a valid email address",
	"strongpassword": "Password must be at least 8 characters and contain an uppercase letter and a number",
	"phone":          "Invalid phone number format",
	"oneof":          "must be one of: admin staff user",
	"gt":             "must be positive",
}

// validationError turns a binding failure into a 422 with per-field
// details.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.ErrValidation.WithDetails(map[string]any{"body": "malformed JSON: " + err.Error()})
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "failed " + fe.Tag() + " validation"
		}
		details[jsonName(fe.Field())] = msg
	}
	return apperr.ErrValidation.WithDetails(details)
}

// jsonName maps the struct field names validator reports to the request's
// JSON keys.
func jsonName(field string) string {
	switch field {
	case "PhoneNumber":
		return "phone_number"
	case "DepartmentID":
		return "department_id"
	default:
		return strings.ToLower(field)
	}
}

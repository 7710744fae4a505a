package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rbroggi/parcelhub/internal/core/model"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "password", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %q validation: %v", tag, err))
	}
}

// isStrongPassword requires 6 to 20 characters with an upper case letter, a lower case letter, a digit and a
// special character.
func isStrongPassword(pw string) bool {
	if n := len([]rune(pw)); n < 6 || n > 20 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// decoder decodes and validates request bodies.
type decoder struct {
	validate *validator.Validate
}

// decode reads the JSON body into dst and validates it. An empty body is accepted when optional is set.
func (d decoder) decode(r *http.Request, dst any, optional bool) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			return model.NewValidationError("Invalid request body", model.ErrorSource{Path: "body", Message: err.Error()})
		}
	}
	return d.check(dst)
}

func (d decoder) check(dst any) error {
	err := d.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("error validating request: %w", err)
	}
	sources := make([]model.ErrorSource, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		sources = append(sources, model.ErrorSource{Path: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return model.NewValidationError("Validation Error", sources...)
}

// fieldPath drops the root struct name from the namespace, e.g. recipient.phone.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email address format"
	case "password":
		return "Password must be 6 to 20 characters long and contain an uppercase letter, a lowercase letter, a digit and a special character"
	case "phone":
		return "Invalid phone number"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lt", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
}

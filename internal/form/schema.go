// Package form holds the client side of registration: per-step validation,
// the two-step state machine and the submission hand-off.
package form

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Step int

const (
	StepIdentity Step = 1
	StepLocation Step = 2
)

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z\s]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// Identity is the first step: who the customer is and their credentials.
type Identity struct {
	FullName        string `json:"fullName" validate:"required,alpha_space"`
	Email           string `json:"email" validate:"required,email"`
	PhoneNumber     string `json:"phoneNumber" validate:"ten_digits"`
	Gender          string `json:"gender" validate:"oneof=Male Female Other"`
	DateOfBirth     string `json:"dateOfBirth" validate:"required"`
	Address         string `json:"address" validate:"required"`
	Password        string `json:"password" validate:"min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"min=6,eqfield=Password"`
}

// AddressLength is the character count shown under the address field.
func (i Identity) AddressLength() int {
	return len([]rune(i.Address))
}

// Location is the optional second step.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// messages maps field and failed tag to the text shown under the field.
var messages = map[string]map[string]string{
	"fullName": {
		"required":    "Full Name is required",
		"alpha_space": "Full Name must contain only letters and spaces",
	},
	"email":           {"*": "Invalid email address"},
	"phoneNumber":     {"*": "Phone Number must be exactly 10 digits"},
	"gender":          {"*": "Gender is required"},
	"dateOfBirth":     {"*": "Date of Birth is required"},
	"address":         {"*": "Address is required"},
	"password":        {"*": "Password must be at least 6 characters"},
	"confirmPassword": {"eqfield": "Passwords must match", "*": "Confirm Password is required"},
	"latitude":        {"*": "Latitude must be a number between -90 and 90"},
	"longitude":       {"*": "Longitude must be a number between -180 and 180"},
}

// ValidationError maps wire field names to the message for that field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Schema validates candidate step values. It is safe for concurrent use and
// never touches the network.
type Schema struct {
	validate *validator.Validate
}

func NewSchema() *Schema {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("alpha_space", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("ten_digits", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Schema{validate: v}
}

func (s *Schema) ValidateIdentity(in Identity) error {
	return s.check(in)
}

func (s *Schema) ValidateLocation(in Location) error {
	return s.check(in)
}

// Validate dispatches on step; candidate must be the matching step type.
func (s *Schema) Validate(step Step, candidate any) error {
	switch step {
	case StepIdentity:
		in, ok := candidate.(Identity)
		if !ok {
			return errors.New("identity step expects form.Identity")
		}
		return s.ValidateIdentity(in)
	case StepLocation:
		in, ok := candidate.(Location)
		if !ok {
			return errors.New("location step expects form.Location")
		}
		return s.ValidateLocation(in)
	default:
		return errors.New("unknown step")
	}
}

func (s *Schema) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = message(name, fe.Tag())
	}
	return &ValidationError{Fields: fields}
}

func message(field, tag string) string {
	byTag := messages[field]
	if m, ok := byTag[tag]; ok {
		return m
	}
	if m, ok := byTag["*"]; ok {
		return m
	}
	return field + " is invalid"
}

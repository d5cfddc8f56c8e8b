// Package validation checks request payloads and domain records against the
// field constraints declared in the models package.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/seking31/tms-server/models"
)

var timestampPattern = regexp.MustCompile(models.TimestampPattern)

// Error lists every constraint a payload or record violated.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return strings.Join(e.Problems, ", ")
}

// Problem builds an Error with a single violation.
func Problem(format string, args ...interface{}) *Error {
	return &Error{Problems: []string{fmt.Sprintf(format, args...)}}
}

// Validator wraps a validator.Validate with the model constraint tags
// registered. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return jsonName(fld)
	})

	v.RegisterAlias("name", fmt.Sprintf("min=%d,max=%d", models.NameMinLength, models.NameMaxLength))
	v.RegisterAlias("description", fmt.Sprintf("max=%d", models.DescriptionMaxLength))

	mustRegister(v, "taskstatus", func(fl validator.FieldLevel) bool {
		return models.TaskStatus(fl.Field().String()).Valid()
	})
	mustRegister(v, "taskpriority", func(fl validator.FieldLevel) bool {
		return models.TaskPriority(fl.Field().String()).Valid()
	})
	mustRegister(v, "timestamp", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if !timestampPattern.MatchString(value) {
			return false
		}
		_, err := models.ParseTimestamp(value)
		return err == nil
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: registering %q: %v", tag, err))
	}
}

// Struct validates a domain record. It returns *Error when constraints are
// violated.
func (v *Validator) Struct(record interface{}) error {
	problems, err := v.check(record, nil)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// check runs the struct rules and renders each failure. Failures for fields
// in skip are dropped.
func (v *Validator) check(record interface{}, skip map[string]struct{}) ([]string, error) {
	err := v.validate.Struct(record)
	if err == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, ok := skip[fe.Field()]; ok {
			continue
		}
		problems = append(problems, describe(fe))
	}
	return problems, nil
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("data must have required property '%s'", field)
	case "min":
		return fmt.Sprintf("data/%s must NOT have fewer than %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("data/%s must NOT have more than %s characters", field, fe.Param())
	case "taskstatus", "taskpriority":
		return fmt.Sprintf("data/%s must be equal to one of the allowed values", field)
	case "timestamp":
		return fmt.Sprintf("data/%s must match pattern \"%s\"", field, models.TimestampPattern)
	default:
		return fmt.Sprintf("data/%s failed the %s rule", field, fe.ActualTag())
	}
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

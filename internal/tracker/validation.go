package tracker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	FieldUserID      = "userId"
	FieldName        = "name"
	FieldUsername    = "username"
	FieldDescription = "description"
	FieldDuration    = "duration"
	FieldDate        = "date"
	FieldFrom        = "from"
	FieldTo          = "to"
	FieldLimit       = "limit"

	DescriptionMinLen = 5
	DescriptionMaxLen = 1000
	UsernameMaxLen    = 255
)

// Check is a single rule applied to a field value. Exactly one of Tag (a validator
// tag) or Fn is set. Fn returning an error aborts validation of the whole request.
type Check struct {
	Tag     string
	Fn      func(ctx context.Context, value string) (bool, error)
	Kind    error
	Message func(value string) string
}

type FieldRule struct {
	Field     string
	Normalize func(string) string
	Checks    []Check
}

// Schema is an ordered set of field rules. Every field is evaluated, checks of a
// single field stop at the first failing one.
type Schema []FieldRule

func message(msg string) func(string) string {
	return func(string) string { return msg }
}

func NewValidate() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// integers are 32 bit, the widest the stores keep
	mustRegister(validate, "integer", func(fl validator.FieldLevel) bool {
		_, err := strconv.ParseInt(fl.Field().String(), 10, 32)
		return err == nil
	})
	mustRegister(validate, "positive_integer", func(fl validator.FieldLevel) bool {
		n, err := strconv.ParseInt(fl.Field().String(), 10, 32)
		return err == nil && n > 0
	})
	return validate
}

func mustRegister(validate *validator.Validate, tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %s", tag, err))
	}
}

// Validate runs the schema against input. It returns the normalized values, and a
// *ValidationError listing every failed field, or the first error a check function hit.
func (s Schema) Validate(ctx context.Context, validate *validator.Validate, input map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(s))
	validationErr := &ValidationError{}

	for _, rule := range s {
		value := input[rule.Field]
		if rule.Normalize != nil {
			value = rule.Normalize(value)
		}
		values[rule.Field] = value

		for _, check := range rule.Checks {
			ok, err := check.run(ctx, validate, value)
			if err != nil {
				return nil, err
			}
			if !ok {
				validationErr.add(&FieldError{
					Field:   rule.Field,
					Kind:    check.Kind,
					Message: check.Message(value),
				})
				break
			}
		}
	}

	if !validationErr.empty() {
		return values, validationErr
	}
	return values, nil
}

func (c Check) run(ctx context.Context, validate *validator.Validate, value string) (bool, error) {
	if c.Fn != nil {
		return c.Fn(ctx, value)
	}

	err := validate.VarCtx(ctx, value, c.Tag)
	if err == nil {
		return true, nil
	}
	if _, ok := err.(validator.ValidationErrors); ok {
		return false, nil
	}
	// *validator.InvalidValidationError, a broken tag
	return false, fmt.Errorf("validate with tag [%s]: %w", c.Tag, err)
}

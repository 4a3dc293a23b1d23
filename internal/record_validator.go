package internal

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xcodebn/zoun"
)

// RecordValidator checks bound records against the constraints declared in their validate tags.
type RecordValidator struct {
	validate *validator.Validate
	patterns sync.Map // map[string]*regexp.Regexp
}

// NewRecordValidator creates a validator with the admin rule set registered:
// notblank, pattern=<regexp> and the past/future temporal aliases.
func NewRecordValidator() *RecordValidator {
	rv := &RecordValidator{}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName(ValidateTagName)
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		return fieldName(sf)
	})

	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation(tagNotBlank, validators.NotBlank)
	_ = v.RegisterValidation(tagPattern, rv.matchPattern)

	v.RegisterAlias(tagPast, "lt")
	v.RegisterAlias(tagFuture, "gt")
	v.RegisterAlias(tagPastOrPresent, "lte")
	v.RegisterAlias(tagFutureOrPresent, "gte")

	v.RegisterCustomTypeFunc(dateValue, pgtype.Date{})
	v.RegisterCustomTypeFunc(timestampValue, pgtype.Timestamp{}, pgtype.Timestamptz{})
	v.RegisterCustomTypeFunc(numericValue, pgtype.Numeric{})

	rv.validate = v
	return rv
}

// Validate returns a validation error describing every violated constraint, or nil.
func (rv *RecordValidator) Validate(record any) error {
	err := rv.validate.Struct(record)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return zoun.NewInternalError("record cannot be validated", err)
	}

	var violations validator.ValidationErrors
	if !errors.As(err, &violations) || len(violations) == 0 {
		return zoun.NewInternalError("record validation failed", err)
	}

	details := make([]map[string]string, 0, len(violations))
	messages := make([]string, 0, len(violations))
	for _, fe := range violations {
		msg := violationMessage(fe)
		details = append(details, map[string]string{
			"field":   fe.Field(),
			"rule":    fe.Tag(),
			"message": msg,
		})
		messages = append(messages, fe.Field()+": "+msg)
	}

	first := violations[0]
	return zoun.NewValidationError(first.Field(), strings.Join(messages, "; ")).
		WithDetail("violations", details)
}

func (rv *RecordValidator) matchPattern(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	value := field.String()
	if value == "" {
		return true
	}
	re, err := rv.compile(fl.Param())
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

func (rv *RecordValidator) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := rv.patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	// Anchored so the whole value has to match.
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	rv.patterns.Store(pattern, re)
	return re, nil
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be null"
	case tagNotBlank:
		return "must not be blank"
	case "email":
		return "must be a well-formed email address"
	case tagPattern:
		return fmt.Sprintf("must match \"%s\"", fe.Param())
	case tagPast:
		return "must be a past date"
	case tagFuture:
		return "must be a future date"
	case tagPastOrPresent:
		return "must be a date in the past or in the present"
	case tagFutureOrPresent:
		return "must be a date in the present or in the future"
	case "min":
		if isLengthKind(fe.Kind()) {
			return "size must be at least " + fe.Param()
		}
		return "must be greater than or equal to " + fe.Param()
	case "max":
		if isLengthKind(fe.Kind()) {
			return "size must be at most " + fe.Param()
		}
		return "must be less than or equal to " + fe.Param()
	case "gt":
		if fe.Param() == "0" {
			return "must be greater than 0"
		}
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed the '%s=%s' rule", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed the '%s' rule", fe.Tag())
}

func isLengthKind(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return true
	}
	return false
}

func dateValue(field reflect.Value) any {
	d, ok := field.Interface().(pgtype.Date)
	if !ok || !d.Valid {
		return nil
	}
	return d.Time
}

func timestampValue(field reflect.Value) any {
	switch v := field.Interface().(type) {
	case pgtype.Timestamp:
		if v.Valid {
			return v.Time
		}
	case pgtype.Timestamptz:
		if v.Valid {
			return v.Time
		}
	}
	return nil
}

func numericValue(field reflect.Value) any {
	n, ok := field.Interface().(pgtype.Numeric)
	if !ok || !n.Valid {
		return nil
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return f.Float64
}

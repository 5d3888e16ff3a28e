package validator

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator"
)

var (
	global    *validator.Validate
	clockTime = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

const (
	ErrFieldRequired      = "is required"
	ErrInvalidFormat      = "has invalid format"
	ErrFieldExceedsMaxLen = "exceeds maximum length"
	ErrFieldBelowMinLen   = "is below minimum length"
	ErrFieldExceedsMaxVal = "exceeds maximum value"
	ErrFieldBelowMinVal   = "is below minimum value"
	ErrUnknownValidation  = "is invalid"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("notblank", validateNotBlank)
	_ = v.RegisterValidation("hhmm", validateClockTime)
	_ = v.RegisterValidation("positive", validatePositive)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateClockTime(fl validator.FieldLevel) bool {
	return clockTime.MatchString(fl.Field().String())
}

func validatePositive(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() > 0
	case reflect.Float32, reflect.Float64:
		return fl.Field().Float() > 0
	}
	return false
}

// Validate checks structure and returns every violation, one message per
// failing field, or nil.
func Validate(ctx context.Context, structure any) []string {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) []string {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(vErrors))
	for _, ve := range vErrors {
		msgs = append(msgs, ve.Field()+" "+describe(ve))
	}
	return msgs
}

func describe(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required", "notblank":
		return ErrFieldRequired
	case "email", "url", "hhmm":
		return ErrInvalidFormat
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", ve.Param())
	case "max":
		if ve.Kind() == reflect.String {
			return ErrFieldExceedsMaxLen
		}
		return ErrFieldExceedsMaxVal
	case "min":
		if ve.Kind() == reflect.String {
			return ErrFieldBelowMinLen
		}
		return ErrFieldBelowMinVal
	case "lt", "lte":
		return ErrFieldExceedsMaxVal
	case "gt", "gte":
		return ErrFieldBelowMinVal
	case "positive":
		return "must be greater than 0"
	default:
		return ErrUnknownValidation
	}
}

package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"marpro/internal/domain"
	"marpro/internal/models"

	"github.com/go-playground/validator/v10"
)

// phoneRe accepts international and local formats: +420 777 123 456, 777-123-456
var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 \-]{7,18}[0-9]$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report errors with the JSON field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("phone", isPhone); err != nil {
		panic(fmt.Sprintf("register phone validation: %v", err))
	}
	return v
}

func isPhone(fl validator.FieldLevel) bool {
	return phoneRe.MatchString(strings.TrimSpace(fl.Field().String()))
}

// validateStruct runs struct tag validation and reports the first failing
// field as a *domain.ValidationError.
func validateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("", err.Error())
	}
	fe := verrs[0]
	return domain.NewValidationError(fieldName(fe), describe(fe))
}

// fieldName strips the struct prefix: "OrderRequest.additionalUnits[0]" →
// "additionalUnits[0]".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid e-mail address"
	case "phone":
		return "must be a valid phone number"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must have at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must match format " + fe.Param()
	case "latitude", "longitude":
		return "is not a valid " + fe.Tag()
	default:
		return "is invalid"
	}
}

// scheduleError converts a schedule normalization failure. Order form
// submissions name the schedule fields differently.
func scheduleError(err error, orderForm bool) error {
	var se *models.ScheduleError
	if !errors.As(err, &se) {
		return domain.NewValidationError("", err.Error())
	}
	field := se.Field
	if orderForm {
		field = requestField(field)
	}
	return domain.NewValidationError(field, se.Message)
}

// requestField maps schedule fields to the order form names.
func requestField(field string) string {
	switch field {
	case "date":
		return "orderDate"
	case "startTime":
		return "time"
	default:
		return field
	}
}

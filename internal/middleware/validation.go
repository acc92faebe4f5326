package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/ward-api/pkg/daterange"
)

// ValidationConfig represents validation configuration
type ValidationConfig struct {
	CustomValidators map[string]validator.Func
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"calendar_date": calendarDate,
		},
	}
}

// RegisterValidation configures gin's validator: field names in errors are
// the json names and the custom tags in config become available to binding
// rules.
func RegisterValidation(config ValidationConfig) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	for tag, fn := range config.CustomValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}

	// Decimals are checked by their numeric value, so min and max apply.
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return nil
}

// calendarDate rejects dates outside years 1900..9999.
func calendarDate(fl validator.FieldLevel) bool {
	d, ok := fl.Field().Interface().(daterange.Date)
	if !ok {
		return false
	}
	return d >= daterange.New(1900, 1, 1) && d <= daterange.New(9999, 12, 31)
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return nil
}

// ==============================================================================
// VALIDATOR PACKAGE - pkg/validator/validator.go
// ==============================================================================
package validator

import (
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "pensionflow/pkg/errors"
)

// DateLayout is the wire format for every date field.
const DateLayout = "2006-01-02"

var (
	panPattern     = regexp.MustCompile(`^[A-Za-z0-9]{10}$`)
	mobilePattern  = regexp.MustCompile(`^\d{10}$`)
	pranPattern    = regexp.MustCompile(`^\d{12}$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
	otp6Pattern    = regexp.MustCompile(`^\d{6}$`)
	otp5Pattern    = regexp.MustCompile(`^\d{5}$`)
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.registerCustomValidations()
	return v
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		// Format validation errors
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, e := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"Field '%s' failed validation '%s'",
					e.Field(),
					e.Tag(),
				))
			}
			return fmt.Errorf("validation failed: %v", errMessages)
		}
		return err
	}
	return nil
}

// Check validates i and returns the first failure as an
// *errors.ValidationError carrying a user-facing message.
func (v *Validator) Check(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		e := validationErrors[0]
		return apperrors.Invalid(e.Field(), message(e))
	}
	return err
}

// ValidateStructured returns a map of field -> error message for frontend usage
func (v *Validator) ValidateStructured(i interface{}) map[string]string {
	errs := make(map[string]string)
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				errs[e.Field()] = message(e)
			}
		} else {
			errs["_global"] = err.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Var validates a single value against a tag expression.
func (v *Validator) Var(value interface{}, tag string) bool {
	return v.validate.Var(value, tag) == nil
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", e.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("Must be at least %s", e.Param())
	case "pan":
		return "PAN must be 10 alphanumeric characters"
	case "mobile":
		return "Mobile number must be 10 digits"
	case "pran":
		return "PRAN must be 12 digits"
	case "pincode":
		return "Enter a valid 6-digit pincode"
	case "otp6":
		return "Please enter the 6-digit OTP"
	case "otp5":
		return "Please enter the 5-digit OTP"
	case "upi":
		return "Enter a valid UPI ID"
	case "dob":
		return "Enter a valid date of birth"
	case "eq":
		return "Please accept the declaration"
	}
	return fmt.Sprintf("failed validation on '%s'", e.Tag())
}

func (v *Validator) registerCustomValidations() {
	// Register decimal.Decimal to be validated as float64 for gt/lt checks
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := val.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	patterns := map[string]*regexp.Regexp{
		"pan":     panPattern,
		"mobile":  mobilePattern,
		"pran":    pranPattern,
		"pincode": pincodePattern,
		"otp6":    otp6Pattern,
		"otp5":    otp5Pattern,
	}
	for tag, re := range patterns {
		re := re
		_ = v.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(strings.TrimSpace(fl.Field().String()))
		})
	}

	_ = v.validate.RegisterValidation("upi", func(fl validator.FieldLevel) bool {
		return IsUPIHandle(fl.Field().String())
	})

	_ = v.validate.RegisterValidation("dob", func(fl validator.FieldLevel) bool {
		return IsDate(fl.Field().String())
	})
}

// IsUPIHandle accepts anything that looks like name@provider.
func IsUPIHandle(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1
}

// IsDate reports whether s is a YYYY-MM-DD date not in the future.
func IsDate(s string) bool {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return !t.After(time.Now())
}

// Sanitize cleans string input to prevent XSS attacks
func Sanitize(input string) string {
	return html.EscapeString(strings.TrimSpace(input))
}

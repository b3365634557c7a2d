package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/checkout"
	"github.com/go-playground/validator/v10"
)

// PhoneTag is the validation tag for mobile-money phone numbers
const PhoneTag = "momo_phone"

var phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)

// NormalizePhone removes every whitespace character from a phone number
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
}

// ValidPhone reports whether phone holds 10 to 15 digits once whitespace is removed
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}

// RegisterValidations adds the checkout tags to v. The HTTP layer calls it on
// gin's binding engine so request DTOs can use them too.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation(PhoneTag, func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
}

// NewValidator creates a validator with the checkout tags registered and
// JSON field names in errors
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// detailsMessage validates details and returns the message shown to the
// payer, or "" when they are valid. Missing fields are reported before
// format problems.
func detailsMessage(v *validator.Validate, details checkout.CustomerDetails) string {
	err := v.Struct(details)
	if err == nil {
		return ""
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return checkout.MsgMissingRequired
	}

	msg := ""
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			return checkout.MsgMissingRequired
		case "email":
			if msg == "" {
				msg = checkout.MsgInvalidEmail
			}
		case PhoneTag:
			if msg == "" {
				msg = checkout.MsgInvalidPhone
			}
		default:
			if msg == "" {
				msg = checkout.MsgMissingRequired
			}
		}
	}
	return msg
}

func trimDetails(d checkout.CustomerDetails) checkout.CustomerDetails {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
	d.City = strings.TrimSpace(d.City)
	return d
}

package validator

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

// Closed sets mirrored from the domain packages. Domain types still validate
// themselves; these tags only shape request errors.
var (
	txTypes = []string{
		"REFERRAL", "PURCHASE", "STREAK_REWARD", "SEASON_REWARD", "MILESTONE_REWARD",
		"SIGNUP_BONUS", "ADMIN_GRANT", "SPEND", "REFUND", "ADJUSTMENT",
	}
	ruleTypes = []string{"SEND_POSITIVE", "RESPOND", "COMEBACK"}
)

func registerCustomValidations() {
	validate.RegisterValidation("tx_type", func(fl validator.FieldLevel) bool {
		return oneOf(fl.Field().String(), txTypes)
	})

	validate.RegisterValidation("rule_type", func(fl validator.FieldLevel) bool {
		return oneOf(strings.ToUpper(strings.TrimSpace(fl.Field().String())), ruleTypes)
	})

	// IANA zone name; empty passes so it can be combined with omitempty or required
	validate.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
		tz := fl.Field().String()
		if tz == "" {
			return true
		}
		_, err := time.LoadLocation(tz)
		return err == nil
	})
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range verrs {
		field := err.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid":
			errors[field] = "Invalid UUID"
		case "datetime":
			errors[field] = "Invalid date, expected " + err.Param()
		case "tx_type":
			errors[field] = "Unknown transaction type"
		case "rule_type":
			errors[field] = "Invalid rule type. Must be: SEND_POSITIVE, RESPOND, or COMEBACK"
		case "timezone":
			errors[field] = "Unknown IANA timezone"
		case "oneof":
			errors[field] = "Must be one of: " + err.Param()
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}

// Package utils provides utility functions used throughout the application.
package utils

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// md5Regex matches a 32-character lowercase hex digest, the form beatmap
	// checksums take on the wire.
	md5Regex = regexp.MustCompile(`^[0-9a-f]{32}$`)

	// modAcronymRegex matches mod acronyms ("HD", "DT", "CL", ...).
	modAcronymRegex = regexp.MustCompile(`^[A-Z0-9]{2,3}$`)

	// Custom error messages for validation errors
	validationErrorMessages = map[string]string{
		"required":   "This field is required",
		"min":        "Value must be greater than or equal to %s",
		"max":        "Value must be less than or equal to %s",
		"gte":        "Value must be greater than or equal to %s",
		"lte":        "Value must be less than or equal to %s",
		"md5":        "Must be a 32-character hexadecimal MD5 digest",
		"modacronym": "Must be a 2-3 character mod acronym",
	}
)

// Initialize validator with custom validations
func init() {
	validate = validator.New()

	// Register function to get tag name from json tags
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validation functions
	_ = validate.RegisterValidation("md5", validateMD5)
	_ = validate.RegisterValidation("modacronym", validateModAcronym)
}

// Validate performs validation on the given struct and returns validation errors.
func Validate(s any) error {
	return validate.Struct(s)
}

// ValidateVar validates a single variable with the given tag and returns errors.
func ValidateVar(field any, tag string) error {
	return validate.Var(field, tag)
}

// FormatValidationErrors formats validation errors into a user-friendly map.
func FormatValidationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}

	validationErrors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		tag := err.Tag()
		param := err.Param()

		message, exists := validationErrorMessages[tag]
		if !exists {
			message = "Invalid value"
		}

		// Replace parameter placeholders in error messages
		if param != "" && strings.Contains(message, "%s") {
			message = strings.Replace(message, "%s", param, 1)
		}

		validationErrors[field] = message
	}

	return validationErrors
}

// validateMD5 checks that a string is a lowercase hex MD5 digest.
func validateMD5(fl validator.FieldLevel) bool {
	return md5Regex.MatchString(fl.Field().String())
}

// validateModAcronym checks that a string looks like a mod acronym. Whether
// the acronym is legal for a given ruleset is checked separately in models.
func validateModAcronym(fl validator.FieldLevel) bool {
	return modAcronymRegex.MatchString(fl.Field().String())
}

// GetValidator returns the validator instance.
func GetValidator() *validator.Validate {
	return validate
}

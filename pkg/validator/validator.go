package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

func FormatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(oneofValues(fe.Param()), ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s format", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// oneofParam matches the values of a oneof tag; quoted values may hold spaces.
var oneofParam = regexp.MustCompile(`'[^']*'|\S+`)

func oneofValues(param string) []string {
	values := oneofParam.FindAllString(param, -1)
	for i, v := range values {
		values[i] = strings.Trim(v, "'")
	}
	return values
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Subject":  "Subject",
		"Title":    "Title",
		"DueDate":  "Due date",
		"Status":   "Status",
		"Priority": "Priority",
		"Notes":    "Notes",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}

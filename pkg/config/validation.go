package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	FieldPath string
	Message   string
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d invalid field(s):", len(ve))
	for _, e := range ve {
		fmt.Fprintf(&sb, " %s: %s;", e.FieldPath, e.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hostname_port":
		return "must be in format 'host:port'"
	case "file":
		return "must be an existing file"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

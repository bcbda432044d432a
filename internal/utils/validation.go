package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationDetails flattens a binding error into field -> message pairs
// for the error envelope.
func ValidationDetails(err error) map[string]string {
	details := make(map[string]string)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[jsonFieldName(fe)] = describe(fe)
		}
		return details
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		details[typeErr.Field] = fmt.Sprintf("must be a %s", typeErr.Type.String())
		return details
	}

	details["body"] = err.Error()
	return details
}

func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must contain at most " + fe.Param() + " items"
	case "min":
		return "must contain at least " + fe.Param() + " items"
	case "latitude", "longitude":
		return "must be a valid " + fe.Tag()
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

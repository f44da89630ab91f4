package dto

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func validateURL(field, urlVal string) []ValidationError {
	var errs []ValidationError
	if urlVal != "" {
		u, err := url.ParseRequestURI(urlVal)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{Field: field, Message: "invalid URL format"})
		}
	}
	return errs
}

func validateLength(field, value string, max int) []ValidationError {
	var errs []ValidationError
	if len(value) > max {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d bytes", max)})
	}
	return errs
}

package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"blockeditor/internal/domain"
)

// ErrInvalidTemplate is returned when a template entry is malformed.
var ErrInvalidTemplate = errors.New("invalid template")

var validate = validator.New()

type templateDoc struct {
	Blocks domain.Template `validate:"dive"`
}

// Validate checks every entry of tmpl, at every depth, for a non-empty name.
func Validate(tmpl domain.Template) error {
	return wrapValidation(validate.Struct(templateDoc{Blocks: tmpl}))
}

// ValidatePostTypeTemplate validates a post type binding and its template.
func ValidatePostTypeTemplate(ptt *domain.PostTypeTemplate) error {
	return wrapValidation(validate.Struct(ptt))
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Namespace()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidTemplate, strings.Join(msgs, "; "))
}

package quiz

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/creastat/quizstore"
)

type validate struct {
	v *validator.Validate
}

func newValidate() *validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("kanda", func(fl validator.FieldLevel) bool {
		return quizstore.Kanda(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
		return quizstore.Difficulty(fl.Field().String()).Valid()
	})

	return &validate{v: v}
}

// question checks q and reports the first failing field as a
// *quizstore.ValidationError.
func (v *validate) question(q quizstore.Question) error {
	err := v.v.Struct(q)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate question: %w", err)
	}

	fe := fieldErrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	return &quizstore.ValidationError{Field: field, Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "kanda":
		return fmt.Sprintf("unknown kanda %q", fe.Value())
	case "difficulty":
		return "must be one of easy, medium, hard"
	}
	return fmt.Sprintf("failed %s check", fe.Tag())
}

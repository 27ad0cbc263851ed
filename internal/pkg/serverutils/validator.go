package serverutils

import (
	"fmt"
	"strings"

	"therapist-bot-be/pkg/emotion"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// "emotion" accepts any canonical label, case-insensitive.
	_ = v.RegisterValidation("emotion", func(fl validator.FieldLevel) bool {
		_, err := emotion.ParseLabel(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateRequest runs struct tag validation and flattens the failures into
// a single client-facing error.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return &ValidationError{Message: strings.Join(msgs, "; ")}
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

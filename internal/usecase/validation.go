package usecase

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
)

type registrationInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailInput struct {
	Email string `json:"email"`
}

// validateRegistration checks request shape and the password policy, collecting every field failure.
func validateRegistration(email, password string, policy port.PasswordPolicyValidator) error {
	input := registrationInput{Email: email, Password: password}
	fields := map[string]string{}

	err := validation.ValidateStruct(&input,
		validation.Field(&input.Email, validation.Required, is.Email),
		validation.Field(&input.Password, validation.Required),
	)
	collectFieldErrors(err, fields)

	if _, failed := fields["password"]; !failed && policy != nil {
		if err := policy.Validate(password); err != nil {
			fields["password"] = err.Error()
		}
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func validateEmail(email string) error {
	input := emailInput{Email: email}
	fields := map[string]string{}
	collectFieldErrors(validation.ValidateStruct(&input,
		validation.Field(&input.Email, validation.Required, is.Email),
	), fields)
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func collectFieldErrors(err error, fields map[string]string) {
	if err == nil {
		return
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for field, fieldErr := range errs {
			fields[field] = fieldErr.Error()
		}
		return
	}
	fields["request"] = err.Error()
}

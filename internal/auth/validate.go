package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/me/servicehub/pkg/model"
)

const minPasswordLength = 6

func validateCredentials(c model.Credentials) error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

func validateRegistration(r model.Registration) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Phone, validation.Length(7, 15), is.Digit),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 128)),
		// Admin accounts are never self-registered.
		validation.Field(&r.Role, validation.In(model.RoleUser, model.RoleProvider)),
	)
}

func validateVerificationToken(token string) error {
	return validation.Validate(token, validation.Required.Error("verification token is required"))
}

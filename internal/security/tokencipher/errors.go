package tokencipher

import "travelsec/pkg/errors"

// Sentinel causes; match with errors.Is.
var (
	ErrEmptyToken       = errors.New("token is empty")
	ErrMalformedToken   = errors.New("invalid encrypted token format")
	ErrAuthentication   = errors.New("token authentication failed")
	ErrKeyNotConfigured = errors.New("SOCIAL_TOKEN_ENCRYPTION_KEY is required in production")
)

func emptyError(op string) error {
	return errors.NewError(errors.ErrorTypeBadRequest, "cannot "+op+" empty token").WithCause(ErrEmptyToken)
}

func malformedError(reason string) error {
	return errors.NewError(errors.ErrorTypeIntegrity, "decrypt token").
		WithDetail("reason", reason).
		WithCause(ErrMalformedToken)
}

func authError(cause error) error {
	return errors.NewError(errors.ErrorTypeIntegrity, "decrypt token").
		WithCause(errors.Join(ErrAuthentication, cause))
}

func keyError() error {
	return errors.NewError(errors.ErrorTypeConfiguration, "resolve token key").WithCause(ErrKeyNotConfigured)
}

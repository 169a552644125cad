package auth

import "github.com/pkg/errors"

// errors
var (
	ErrNilAuthenticator         = errors.New("authenticator is nil")
	ErrNilBackend               = errors.New("auth backend is nil")
	ErrEmptySecret              = errors.New("signing secret is empty")
	ErrInvalidExpirationTime    = errors.New("invalid expiration time")
	ErrInvalidAccessToken       = errors.New("invalid access token")
	ErrInvalidTokenID           = errors.New("invalid token id")
	ErrTokenRevoked             = errors.New("token has been revoked")
	ErrMissingIdentity          = errors.New("token carries no user")
	ErrNoAuthorization          = errors.New("authorization header is missing")
	ErrUnsupportedAuthorization = errors.New("unsupported authorization type")
	ErrNoActor                  = errors.New("no actor in context")
)

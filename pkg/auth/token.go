package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/agubarev/handbook/pkg/role"
	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Claims identify the actor a bearer token was issued for
type Claims struct {
	UserID     uint32 `json:"user_id"`
	BusinessID uint32 `json:"business_id"`
	jwt.StandardClaims
}

// Actor returns the identity carried by the claims
func (c Claims) Actor() role.Actor {
	return role.Actor{UserID: c.UserID, BusinessID: c.BusinessID}
}

// Authenticator issues and verifies HS256 bearer tokens; credentials
// are checked elsewhere, only the token itself is trusted here
type Authenticator struct {
	secret  []byte
	ttl     time.Duration
	backend Backend
	logger  *zap.Logger
}

// NewAuthenticator initializes an authenticator
func NewAuthenticator(secret string, ttl time.Duration, backend Backend) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptySecret
	}

	if ttl <= 0 {
		return nil, ErrInvalidExpirationTime
	}

	if backend == nil {
		return nil, ErrNilBackend
	}

	return &Authenticator{
		secret:  []byte(secret),
		ttl:     ttl,
		backend: backend,
	}, nil
}

// SetLogger assigns a logger for this authenticator
func (a *Authenticator) SetLogger(logger *zap.Logger) error {
	if logger != nil {
		logger = logger.Named("[auth]")
	}

	a.logger = logger

	return nil
}

// Logger returns primary logger if is set, otherwise initializing and returning
func (a *Authenticator) Logger() *zap.Logger {
	if a.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize authenticator logger: %s", err))
		}

		a.logger = l
	}

	return a.logger
}

// Issue signs a new access token for a given actor
func (a *Authenticator) Issue(actor role.Actor) (signedToken string, claims Claims, err error) {
	if actor.UserID == 0 {
		return "", claims, ErrMissingIdentity
	}

	now := time.Now()
	claims = Claims{
		UserID:     actor.UserID,
		BusinessID: actor.BusinessID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(a.ttl).Unix(),
			Id:        uuid.New().String(),
		},
	}

	signedToken, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", claims, errors.Wrap(err, "failed to obtain a signed token string")
	}

	return signedToken, claims, nil
}

// Parse verifies the signature and expiry of a token and makes sure
// it has not been revoked
func (a *Authenticator) Parse(signedToken string) (claims Claims, err error) {
	_, err = jwt.ParseWithClaims(signedToken, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return a.secret, nil
	})

	if err != nil {
		return claims, errors.Wrap(ErrInvalidAccessToken, err.Error())
	}

	if claims.UserID == 0 {
		return claims, ErrMissingIdentity
	}

	if _, err = uuid.Parse(claims.Id); err != nil {
		return claims, ErrInvalidTokenID
	}

	if a.backend.IsRevoked(claims.Id) {
		return claims, ErrTokenRevoked
	}

	return claims, nil
}

// Revoke denies any further use of a token until it expires
func (a *Authenticator) Revoke(claims Claims) error {
	if err := a.backend.Revoke(claims.Id); err != nil {
		return err
	}

	a.Logger().Debug("revoked access token", zap.String("jti", claims.Id), zap.Uint32("user_id", claims.UserID))

	return nil
}

package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agubarev/handbook/pkg/auth"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthenticator(t *testing.T, secret string) *auth.Authenticator {
	b, err := auth.NewCacheBackend(time.Hour)
	require.NoError(t, err)

	a, err := auth.NewAuthenticator(secret, time.Hour, b)
	require.NoError(t, err)
	require.NoError(t, a.SetLogger(util.LoggerForTesting()))

	return a
}

func TestIssueAndParse(t *testing.T) {
	a := assert.New(t)

	am := newAuthenticator(t, "s3cret")
	actor := role.Actor{UserID: 3, BusinessID: 1}

	token, issued, err := am.Issue(actor)
	require.NoError(t, err)
	a.NotEmpty(issued.Id)

	claims, err := am.Parse(token)
	a.NoError(err)
	a.Equal(actor, claims.Actor())
	a.Equal(issued.Id, claims.Id)

	// signed with another secret
	_, err = newAuthenticator(t, "other").Parse(token)
	a.Error(err)

	_, _, err = am.Issue(role.Actor{BusinessID: 1})
	a.Equal(auth.ErrMissingIdentity, err)

	// expired
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: 3,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(-time.Minute).Unix(),
			Id:        issued.Id,
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = am.Parse(expired)
	a.Error(err)

	// revoked
	a.NoError(am.Revoke(claims))
	_, err = am.Parse(token)
	a.Equal(auth.ErrTokenRevoked, err)
}

func TestNewAuthenticator(t *testing.T) {
	a := assert.New(t)

	b, err := auth.NewCacheBackend(time.Minute)
	require.NoError(t, err)

	_, err = auth.NewAuthenticator(" ", time.Minute, b)
	a.Equal(auth.ErrEmptySecret, err)

	_, err = auth.NewAuthenticator("s3cret", 0, b)
	a.Equal(auth.ErrInvalidExpirationTime, err)

	_, err = auth.NewAuthenticator("s3cret", time.Minute, nil)
	a.Equal(auth.ErrNilBackend, err)

	_, err = auth.NewCacheBackend(0)
	a.Equal(auth.ErrInvalidExpirationTime, err)
}

func TestMiddleware(t *testing.T) {
	a := assert.New(t)

	am := newAuthenticator(t, "s3cret")

	var seen role.Actor
	h := am.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFromContext(r.Context())
		a.NoError(err)
		seen = actor
	}))

	serve := func(header string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}

		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		return w.Code
	}

	a.Equal(http.StatusUnauthorized, serve(""))
	a.Equal(http.StatusUnauthorized, serve("Basic dXNlcjpwYXNz"))
	a.Equal(http.StatusUnauthorized, serve("Bearer garbage"))

	token, _, err := am.Issue(role.Actor{UserID: 7, BusinessID: 2})
	require.NoError(t, err)

	a.Equal(http.StatusOK, serve("Bearer "+token))
	a.Equal(role.Actor{UserID: 7, BusinessID: 2}, seen)
}

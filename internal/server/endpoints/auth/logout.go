package auth

import (
	"context"
	"net/http"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/internal/server/endpoints"
	"github.com/agubarev/handbook/pkg/auth"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/util/report"
	"go.uber.org/zap"
)

// Logout returns a handler revoking the token the request is made with
func Logout(a *auth.Authenticator) endpoints.Handler {
	return func(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
		claims, err := auth.ClaimsFromContext(ctx)
		if err != nil {
			return endpoints.Fail(ctx, fault.New(fault.KAuthorization, "Token", "Revoke", err.Error()))
		}

		if err = a.Revoke(claims); err != nil {
			return endpoints.Fail(ctx, fault.Storage(err, "failed to revoke token"))
		}

		c.Logger().Debug(
			"token revoked",
			zap.Uint32("user_id", claims.UserID),
			zap.String("jti", claims.Id),
		)

		return map[string]bool{"revoked": true}, nil, http.StatusOK, nil
	}
}

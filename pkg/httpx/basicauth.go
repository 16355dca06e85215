package httpx

import (
	"net/http"

	"github.com/aussiebroadwan/onboard/pkg/cryptox"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
)

// BasicAuth guards admin routes with a single static credential pair. Both
// username and password are always compared, in constant time, so the
// response time does not reveal which half was wrong.
func BasicAuth(realm, username, password string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()

			userOK := cryptox.SecretEqual(user, username)
			passOK := cryptox.SecretEqual(pass, password)
			if !ok || password == "" || !userOK || !passOK {
				slogx.FromContext(r.Context()).Info("basic auth rejected",
					"has_credentials", ok,
				)
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Valid admin credentials are required.")
				return
			}

			ctx := WithActor(r.Context(), "admin:"+user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

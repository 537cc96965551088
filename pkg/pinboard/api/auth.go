package api

import (
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/tendant/simple-pins/pkg/pinboard"
)

// NewTokenAuth returns an HS256 token authority for secret.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken signs a session token for userID valid for ttl.
func IssueToken(ja *jwtauth.JWTAuth, userID string, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{"sub": userID}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, ttl)
	_, token, err := ja.Encode(claims)
	return token, err
}

// sessionFromToken places the verified token's subject on the request
// context as the session user.
func sessionFromToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			renderError(w, r, http.StatusUnauthorized, pinboard.ErrUnauthenticated)
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			renderError(w, r, http.StatusUnauthorized, pinboard.ErrUnauthenticated)
			return
		}
		ctx := pinboard.ContextWithSession(r.Context(), pinboard.Session{UserID: sub})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSession rejects every request. It guards write routes when no
// token authority is configured.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "authentication is not configured"})
	})
}

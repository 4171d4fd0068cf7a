package auth

import (
	"net/http"
	"strings"

	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
	"github.com/KLTN-2025/PTNTYTST5951/lib/logging"
)

// Middleware authenticates the request using the bearer token in the Authorization header.
// Requests without a valid token are rejected with 401.
func Middleware(verifier TokenVerifier) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(response http.ResponseWriter, request *http.Request) {
			ctx := request.Context()
			accessToken, ok := bearerToken(request)
			if !ok {
				httpserv.WriteError(ctx, response, httpserv.NewErrorWithCode("Unauthorized", http.StatusUnauthorized), "authentication")
				return
			}
			principal, err := verifier.Verify(ctx, accessToken)
			if err != nil {
				logging.Logger(ctx).Debug().Err(err).Msg("Bearer token rejected")
				httpserv.WriteError(ctx, response, httpserv.NewErrorWithCode("Unauthorized", http.StatusUnauthorized), "authentication")
				return
			}
			ctx = WithPrincipal(ctx, *principal)
			ctx = logging.WithFields(ctx, map[string]string{logging.FieldSubject: principal.Subject})
			next(response, request.WithContext(ctx))
		}
	}
}

func bearerToken(request *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(request.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/feynmind/pkg/observability"
	"github.com/rhuss/feynmind/pkg/storage"
)

// Gate creates middleware that authenticates every request and forwards it.
//
// On Yes the identity and its storage owner are injected into the context.
// On No the reason is logged, counted, and recorded with SetRejection so the
// policy can answer with an invalid_token challenge. On Abstain the request
// continues untouched. Gate never writes a response; access decisions belong
// to Policy.
func Gate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := authn.Authenticate(r.Context(), r)

			switch result.Decision {
			case Yes:
				if result.Identity == nil || result.Identity.Subject == "" {
					slog.Error("authenticator returned identity with empty subject", "path", r.URL.Path)
					break
				}

				slog.Debug("authentication succeeded",
					"subject", result.Identity.Subject,
					"path", r.URL.Path,
				)

				ctx := SetIdentity(r.Context(), result.Identity)
				ctx = storage.SetOwner(ctx, result.Identity.Subject)
				next.ServeHTTP(w, r.WithContext(ctx))
				return

			case No:
				reason := result.Reason
				if reason == "" {
					reason = "invalid"
				}
				slog.Warn("bearer token rejected",
					"reason", reason,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				observability.TokenRejectionsTotal.WithLabelValues(reason).Inc()
				next.ServeHTTP(w, r.WithContext(SetRejection(r.Context(), reason)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

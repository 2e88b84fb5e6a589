package guard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-brief-portal/auth"
	"github.com/jrsteele09/go-brief-portal/internal/middleware"
	"github.com/jrsteele09/go-brief-portal/model"
)

// retryAfter is sent with a suspended decision.
const retryAfter = time.Second

// Sessions supplies the session snapshot for a request. *auth.Manager
// satisfies it.
type Sessions interface {
	Snapshot(ctx context.Context) auth.Snapshot
}

type Middleware = middleware.Middleware

// ChainMiddleware wraps h so that mw[0] runs first.
func ChainMiddleware(h http.HandlerFunc, mw ...Middleware) http.HandlerFunc {
	return middleware.ChainMiddleware(h, mw...)
}

// Require gates a handler on role. A suspended decision answers 503 with
// Retry-After, a redirect answers 303 See Other.
func Require(sessions Sessions, role model.RoleType) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			decision := Evaluate(SessionFrom(sessions.Snapshot(r.Context())), role)
			switch decision.Outcome {
			case Admit:
				next(w, r)
			case Suspend:
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				http.Error(w, "session is loading", http.StatusServiceUnavailable)
			default:
				http.Redirect(w, r, decision.Location, http.StatusSeeOther)
			}
		}
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/leminhvu/packtrace-backend/api/responses"
	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

// Recoverer converts handler panics into a 500 envelope. The stack goes to
// the log, never to the client.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic": fmt.Sprint(rec),
						"stack": string(debug.Stack()),
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

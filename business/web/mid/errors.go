package mid

import (
	"context"
	"net/http"

	"github.com/Re20Cboy/EZchain/business/web/errs"
	"github.com/Re20Cboy/EZchain/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform
// way. Unexpected errors (status codes) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {

	m := func(handler web.Handler) web.Handler {

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if err := handler(ctx, w, r); err != nil {
				v, verr := web.GetValues(ctx)
				if verr != nil {
					return web.NewShutdownError("web value missing from context")
				}

				log.Errorw("ERROR", "traceid", v.TraceID, "ERROR", err)

				var resp errs.Response
				var status int

				switch trusted := errs.GetTrusted(err); {
				case trusted != nil:
					resp = errs.Response{Error: trusted.Error()}
					status = trusted.Status

				default:
					resp = errs.Response{Error: http.StatusText(http.StatusInternalServerError)}
					status = http.StatusInternalServerError
				}

				if err := web.Respond(ctx, w, resp, status); err != nil {
					return err
				}

				if web.IsShutdown(err) {
					return err
				}
			}

			return nil
		}

		return h
	}

	return m
}

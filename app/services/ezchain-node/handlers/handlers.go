// Package handlers manages the different versions of the ops API.
package handlers

import (
	"context"
	"encoding/json"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	v1 "github.com/Re20Cboy/EZchain/app/services/ezchain-node/handlers/v1"
	"github.com/Re20Cboy/EZchain/business/web/mid"
	"github.com/Re20Cboy/EZchain/ezchain/node"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/events"
	"github.com/Re20Cboy/EZchain/foundation/web"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	Nodes    map[value.NodeID]*node.Node
	Evts     *events.Events
}

// OpsMux constructs a http.Handler with every ops route defined.
func OpsMux(cfg MuxConfig) http.Handler {
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors("*"),
		mid.Panics(),
	)

	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h, mid.Cors("*"))

	v1.OpsRoutes(app, v1.Config{
		Log:   cfg.Log,
		Nodes: cfg.Nodes,
		Evts:  cfg.Evts,
	})

	return app
}

// DebugStandardLibraryMux registers the debug routes from the standard
// library into a new mux, bypassing http.DefaultServeMux so a dependency
// can never inject a handler into this service without being noticed.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers the standard library debug routes plus a liveness
// check for this service.
func DebugMux(build string, log *zap.SugaredLogger) http.Handler {
	mux := DebugStandardLibraryMux()

	mux.HandleFunc("/debug/liveness", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Build  string `json:"build"`
			Status string `json:"status"`
		}{
			Build:  build,
			Status: "up",
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Errorw("liveness", "ERROR", err)
		}
	})

	return mux
}

// Package v1 contains the full set of handler functions and routes
// supported by the v1 ops API.
package v1

import (
	"net/http"

	"github.com/Re20Cboy/EZchain/app/services/ezchain-node/handlers/v1/opsgrp"
	"github.com/Re20Cboy/EZchain/ezchain/node"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/events"
	"github.com/Re20Cboy/EZchain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	Nodes map[value.NodeID]*node.Node
	Evts  *events.Events
}

// OpsRoutes binds the version 1 ops routes (spec §12).
func OpsRoutes(app *web.App, cfg Config) {
	ops := opsgrp.Handlers{
		Log:   cfg.Log,
		Nodes: cfg.Nodes,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/ops/stats", ops.Stats)
	app.Handle(http.MethodGet, version, "/ops/stats/:node", ops.Stats)
	app.Handle(http.MethodGet, version, "/ops/node", ops.Node)
	app.Handle(http.MethodGet, version, "/ops/node/:node", ops.Node)
	app.Handle(http.MethodGet, version, "/ops/events", ops.Events)
}

// Package opsgrp implements the read-only operator endpoints named in
// spec §6/§12: statistics, chain/committee state, and a live event feed.
// It is grounded on the teacher's app/services/node/handlers/v1/public
// Handlers, scoped down to exactly the observation surface the spec names
// — no transaction submission, no balances, no wallet endpoints.
package opsgrp

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/Re20Cboy/EZchain/business/web/errs"
	"github.com/Re20Cboy/EZchain/ezchain/node"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/events"
	"github.com/Re20Cboy/EZchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ops endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	Nodes map[value.NodeID]*node.Node
	WS    websocket.Upgrader
	Evts  *events.Events
}

// nodeFromParam resolves the optional :node route parameter to a Node,
// returning an error the Errors middleware renders as 404/400.
func (h Handlers) nodeFromParam(r *http.Request) (*node.Node, error) {
	raw := web.Param(r, "node")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errs.NewTrusted(err, http.StatusBadRequest)
	}

	n, ok := h.Nodes[value.NodeID(id)]
	if !ok {
		return nil, errs.NewTrusted(errNodeNotFound(id), http.StatusNotFound)
	}
	return n, nil
}

func errNodeNotFound(id uint64) error {
	return fmt.Errorf("node %d is not running in this process", id)
}

func (h Handlers) sortedIDs() []value.NodeID {
	ids := make([]value.NodeID, 0, len(h.Nodes))
	for id := range h.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stats returns the statistic() snapshot for the requested node, or every
// node's snapshot if no :node parameter is present.
func (h Handlers) Stats(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if web.Param(r, "node") != "" {
		n, err := h.nodeFromParam(r)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, toNodeStats(n), http.StatusOK)
	}

	out := make([]nodeStats, 0, len(h.Nodes))
	for _, id := range h.sortedIDs() {
		out = append(out, toNodeStats(h.Nodes[id]))
	}
	return web.Respond(ctx, w, out, http.StatusOK)
}

// Node returns the chain-tip and committee summary for the requested
// node, or every node's summary if no :node parameter is present.
func (h Handlers) Node(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if web.Param(r, "node") != "" {
		n, err := h.nodeFromParam(r)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, toNodeSummary(n), http.StatusOK)
	}

	out := make([]nodeSummary, 0, len(h.Nodes))
	for _, id := range h.sortedIDs() {
		out = append(out, toNodeSummary(h.Nodes[id]))
	}
	return web.Respond(ctx, w, out, http.StatusOK)
}

// Events upgrades the connection to a websocket and streams every log line
// produced by the running node set, mirroring the teacher's
// Handlers.Events.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(*http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

func toNodeStats(n *node.Node) nodeStats {
	snap := n.Statistics()
	return nodeStats{
		NodeID:     uint64(n.ID()),
		CCPT:       snap.CCPT,
		ACCStorage: snap.ACCStorage,
		CCCStorage: snap.CCCStorage,
		PBCStorage: snap.PBCStorage,
	}
}

func toNodeSummary(n *node.Node) nodeSummary {
	sum := n.Summary()
	committee := make([]uint64, len(sum.Committee))
	for i, id := range sum.Committee {
		committee[i] = uint64(id)
	}
	return nodeSummary{
		NodeID:      uint64(sum.NodeID),
		ACHeight:    sum.ACHeight,
		CCHeight:    sum.CCHeight,
		Epoch:       sum.Epoch,
		InCommittee: sum.InCommittee,
		IsLeader:    sum.IsLeader,
		Phase:       sum.Phase,
		Committee:   committee,
	}
}

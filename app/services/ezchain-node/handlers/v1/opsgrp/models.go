package opsgrp

// nodeStats is the wire shape of one node's statistics snapshot.
type nodeStats struct {
	NodeID     uint64  `json:"node_id"`
	CCPT       float64 `json:"ccpt"`
	ACCStorage uint64  `json:"acc_storage"`
	CCCStorage uint64  `json:"ccc_storage"`
	PBCStorage uint64  `json:"pbc_storage"`
}

// nodeSummary is the wire shape of one node's chain tips and committee
// membership.
type nodeSummary struct {
	NodeID      uint64   `json:"node_id"`
	ACHeight    uint64   `json:"ac_height"`
	CCHeight    uint64   `json:"cc_height"`
	Epoch       uint64   `json:"epoch"`
	InCommittee bool     `json:"in_committee"`
	IsLeader    bool     `json:"is_leader"`
	Phase       string   `json:"phase"`
	Committee   []uint64 `json:"committee"`
}

package types

import (
	"time"

	"github.com/haricheung/hadron/internal/phase"
	"github.com/haricheung/hadron/internal/quark"
)

// Source identifies the component that published a bus message
type Source string

const (
	SourceEngine Source = "engine"
	SourceCycle  Source = "cycle"
	SourceShell  Source = "shell"
)

// MessageType identifies the payload type of a bus message
type MessageType string

const (
	MsgCollapse      MessageType = "Collapse"      // cycle → observers: one tick finished
	MsgHadronCreated MessageType = "HadronCreated" // engine → observers: a hadron joined the population
	MsgHadronRefused MessageType = "HadronRefused" // engine → observers: unstable or over the population cap
	MsgReinforced    MessageType = "Reinforced"    // engine → observers: a token matched an existing hadron
	MsgBlackHoles    MessageType = "BlackHoles"    // engine → observers: periodic black-hole recomputation
	MsgInput         MessageType = "Input"         // engine → observers: a text line was ingested
)

// Message is the envelope for every event the engine emits.
// Payloads are snapshots; observers never reach back into engine state.
type Message struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	From      Source      `json:"from"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
}

// CollapseResult is the outcome of one measurement cycle.
type CollapseResult struct {
	Cycle          uint64      `json:"cycle"`
	Phase          phase.Point `json:"phase"`   // the chosen observable's direction
	Context        int         `json:"context"` // 0..4
	Outcome        int         `json:"outcome"` // 0 | 1
	Quark          quark.State `json:"quark"`
	InversionError float64     `json:"inversion_error"` // [0, 1]
	Success        bool        `json:"success"`
	P0             float64     `json:"p0"`
	P1             float64     `json:"p1"`
}

// HadronEvent reports a hadron joining, being refused, or being reinforced.
type HadronEvent struct {
	HadronID    string      `json:"hadron_id,omitempty"`
	Origin      string      `json:"origin"` // "token" | "explicit" | "inversion"
	Token       string      `json:"token,omitempty"`
	Quark       quark.State `json:"quark"`
	Persistence float64     `json:"persistence"`
	Area        float64     `json:"area"`
	Coherence   float64     `json:"coherence"`
	Reason      string      `json:"reason,omitempty"` // refusals only: "unstable" | "population_cap"
}

// BlackHoleRegion is a grid cell with a chronically high collapse-failure rate.
type BlackHoleRegion struct {
	Center      phase.Point `json:"center"`
	Radius      float64     `json:"radius"`
	FailureRate float64     `json:"failure_rate"`
	Samples     int         `json:"samples"`
}

// BlackHoleEvent carries the regions found at a recomputation.
type BlackHoleEvent struct {
	Cycle   uint64            `json:"cycle"`
	Regions []BlackHoleRegion `json:"regions"`
}

// InputEvent summarizes one ingested line.
type InputEvent struct {
	Cycle      uint64 `json:"cycle"`
	Tokens     int    `json:"tokens"`
	Created    int    `json:"created"`
	Reinforced int    `json:"reinforced"`
	Refused    int    `json:"refused"`
}

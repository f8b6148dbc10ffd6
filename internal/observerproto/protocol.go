package observerproto

import "towerkeep.ai/internal/protocol"

// Version is the observer protocol version (separate from the edit relay
// protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeProgress  = "PROGRESS"
	TypeDone      = "DONE"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// SkipBatches only streams every Nth PROGRESS frame (0 and 1: all).
	SkipBatches int `json:"skip_batches,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	Run             *RunInfo      `json:"run,omitempty"`
	Committed       int           `json:"committed"`
	Batches         int           `json:"batches"`
	Elements        []ElementInfo `json:"elements,omitempty"`
}

type RunInfo struct {
	RunID      string `json:"run_id"`
	Seed       int64  `json:"seed"`
	Area       [6]int `json:"area"` // origin xyz, size xyz
	Planned    int    `json:"planned"`
	PlanDigest string `json:"plan_digest"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

type ElementInfo struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Base     int      `json:"base"`
	Height   int      `json:"height"`
	Connects []string `json:"connects,omitempty"`
}

// Server -> Client. Sent per committed batch.
type ProgressMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Seq             int    `json:"seq"`
	Cells           int    `json:"cells"`
	First           [3]int `json:"first"`
	Last            [3]int `json:"last"`
	Attempts        int    `json:"attempts"`
	Committed       int    `json:"committed"`
	Planned         int    `json:"planned"`
}

// Server -> Client. Sent once when a run ends, successfully or not.
type DoneMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Report          protocol.RunReport `json:"report"`
}

package protocol

// GET /buildarea response. Bounds are inclusive.
type BuildArea struct {
	XFrom int `json:"xFrom"`
	YFrom int `json:"yFrom"`
	ZFrom int `json:"zFrom"`
	XTo   int `json:"xTo"`
	YTo   int `json:"yTo"`
	ZTo   int `json:"zTo"`
}

// Block is one entry of a PUT /blocks body, or of a GET /blocks response.
type Block struct {
	X     int               `json:"x"`
	Y     int               `json:"y"`
	Z     int               `json:"z"`
	ID    string            `json:"id"`
	State map[string]string `json:"state,omitempty"`
	Data  string            `json:"data,omitempty"`
}

// BlockResult is the per-block status returned by PUT /blocks.
type BlockResult struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// EDITS (generator -> relay)
type EditsMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RunID           string  `json:"run_id"`
	BatchID         string  `json:"batch_id"`
	Seq             int     `json:"seq"`
	Blocks          []Block `json:"blocks"`
}

// ACK (relay -> generator)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	BatchID         string `json:"batch_id"`
	Accepted        int    `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Retryable       bool   `json:"retryable,omitempty"`
}

// RunReport is the JSON summary printed by the generator binaries.
type RunReport struct {
	RunID          string   `json:"run_id"`
	Seed           int64    `json:"seed"`
	Towers         int      `json:"towers"`
	Bridges        int      `json:"bridges"`
	Stairways      int      `json:"stairways"`
	Castles        int      `json:"castles"`
	PlannedEdits   int      `json:"planned_edits"`
	EmittedEdits   int      `json:"emitted_edits"`
	CommittedEdits int      `json:"committed_edits"`
	Batches        int      `json:"batches"`
	Warnings       []string `json:"warnings,omitempty"`
	PlanDigest     string   `json:"plan_digest"`
	ElapsedMs      int64    `json:"elapsed_ms"`
	DryRun         bool     `json:"dry_run,omitempty"`
	Code           string   `json:"code,omitempty"`
	Error          string   `json:"error,omitempty"`
}

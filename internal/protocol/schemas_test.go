package protocol_test

import (
	"encoding/json"
	"testing"

	"towerkeep.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(name, raw string) {
		t.Helper()
		if err := protocol.ValidateJSON(name, []byte(raw)); err != nil {
			t.Fatalf("validate %s: %v", name, err)
		}
	}

	validate(protocol.SchemaEdits, `{
	  "type":"EDITS",
	  "protocol_version":"1.0",
	  "run_id":"r1",
	  "batch_id":"r1-0",
	  "seq":0,
	  "blocks":[
	    {"x":1,"y":64,"z":2,"id":"minecraft:stone"},
	    {"x":1,"y":65,"z":2,"id":"minecraft:oak_stairs","state":{"facing":"north","half":"top"}},
	    {"x":1,"y":66,"z":2,"id":"minecraft:oak_sign","data":"{Text1:'\"hi\"'}"}
	  ]
	}`)
	validate(protocol.SchemaAck, `{"type":"ACK","protocol_version":"1.0","batch_id":"r1-0","accepted":3}`)
	validate(protocol.SchemaAck, `{"type":"ACK","protocol_version":"1.0","batch_id":"r1-0","accepted":0,"code":"E_TRANSIENT","retryable":true}`)
	validate(protocol.SchemaPalettes, `[{"id":"stone","slots":{"wall":[{"block":"minecraft:stone_bricks","weight":3},{"block":"minecraft:cracked_stone_bricks"}]}}]`)
	validate(protocol.SchemaTuning, `{"seed":7,"access_side":"east","layout":{"stories":2},"emit":{"batch_size":64,"coalesce":true}}`)
}

func TestSchemas_RejectInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{protocol.SchemaEdits, `{"type":"EDITS","protocol_version":"1.0","run_id":"r","batch_id":"b","seq":0,"blocks":[]}`},
		{protocol.SchemaEdits, `{"type":"EDITS","protocol_version":"1.0","run_id":"r","batch_id":"b","seq":0,"blocks":[{"x":0,"y":0,"z":0,"id":"Stone"}]}`},
		{protocol.SchemaAck, `{"type":"ACK","protocol_version":"1.0","batch_id":"b","accepted":-1}`},
		{protocol.SchemaTuning, `{"access_side":"up"}`},
		{protocol.SchemaTuning, `{"emit":{"batch_size":0}}`},
		{protocol.SchemaTuning, `{"unknown_key":1}`},
	}
	for _, c := range cases {
		if err := protocol.ValidateJSON(c.name, []byte(c.raw)); err == nil {
			t.Fatalf("expected %s to reject %s", c.name, c.raw)
		}
	}
}

func TestSchemas_ReportRoundTrip(t *testing.T) {
	rep := protocol.RunReport{
		RunID:          "6f1c",
		Seed:           1337,
		Towers:         4,
		Bridges:        5,
		Stairways:      1,
		Castles:        1,
		PlannedEdits:   100,
		EmittedEdits:   100,
		CommittedEdits: 100,
		Batches:        2,
		PlanDigest:     "abc",
		Code:           protocol.ErrEmission,
	}
	if err := protocol.Validate(protocol.SchemaReport, rep); err != nil {
		t.Fatalf("report: %v", err)
	}
	b, _ := json.Marshal(protocol.EditsMsg{Type: protocol.TypeEdits, ProtocolVersion: protocol.Version, RunID: "r", BatchID: "b", Blocks: []protocol.Block{{ID: "minecraft:air"}}})
	base, err := protocol.DecodeBase(b)
	if err != nil || base.Type != protocol.TypeEdits {
		t.Fatalf("DecodeBase: %+v %v", base, err)
	}
}

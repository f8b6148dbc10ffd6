package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"towerkeep.ai/internal/emit"
	"towerkeep.ai/internal/observerproto"
	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
)

func TestObserverStreamsProgress(t *testing.T) {
	s := NewServer(nil)
	mux := http.NewServeMux()
	mux.Handle("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.Handle("/v1/observer/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s.Begin(observerproto.RunInfo{RunID: "r1", Seed: 7, Planned: 20}, []observerproto.ElementInfo{{ID: "tower-nw", Kind: "tower"}})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/observer/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Sessions() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b := emit.Batch{Seq: 3, Cells: 10, Edits: []templates.Edit{{Pos: geom.V(1, 64, 2), Block: templates.Air, Span: 10}}}
	if err := s.BatchCommitted(context.Background(), emit.Committed{Batch: b, Attempts: 2}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var p observerproto.ProgressMsg
	if err := conn.ReadJSON(&p); err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if p.Type != observerproto.TypeProgress || p.RunID != "r1" || p.Seq != 3 || p.Committed != 10 || p.Planned != 20 {
		t.Fatalf("progress %+v", p)
	}
	if p.First != [3]int{1, 64, 2} || p.Last != [3]int{10, 64, 2} {
		t.Fatalf("progress range %v..%v", p.First, p.Last)
	}

	s.Finish(protocol.RunReport{RunID: "r1", CommittedEdits: 10})
	var d observerproto.DoneMsg
	if err := conn.ReadJSON(&d); err != nil {
		t.Fatalf("read done: %v", err)
	}
	if d.Type != observerproto.TypeDone || d.Report.CommittedEdits != 10 {
		t.Fatalf("done %+v", d)
	}

	resp, err := http.Get(srv.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer resp.Body.Close()
	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode bootstrap: %v", err)
	}
	if boot.Run == nil || boot.Run.RunID != "r1" || boot.Committed != 10 || boot.Batches != 1 || len(boot.Elements) != 1 {
		t.Fatalf("bootstrap %+v", boot)
	}
}

func TestObserverRejectsBadSubscribe(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: "9"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestObserverDropsForSlowWatchers(t *testing.T) {
	s := NewServer(nil)
	s.sessions["slow"] = &session{out: make(chan []byte, 1)}
	b := emit.Batch{Cells: 1, Edits: []templates.Edit{{Span: 1}}}
	for i := 0; i < 3; i++ {
		_ = s.BatchCommitted(context.Background(), emit.Committed{Batch: b})
	}
	if s.Dropped() != 2 {
		t.Fatalf("dropped %d, want 2", s.Dropped())
	}
}

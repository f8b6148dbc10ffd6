package worldio_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/logic/geom"
	"towerkeep.ai/internal/sim/templates"
	"towerkeep.ai/internal/sim/tuning"
	"towerkeep.ai/internal/sim/worldtest"
	"towerkeep.ai/internal/transport/ws"
	"towerkeep.ai/internal/worldio"
)

// gdmc is a tiny GDMC-HTTP stand-in over a 4x3 area at y=64.
type gdmc struct {
	mu       sync.Mutex
	failPuts int
	put      [][]protocol.Block
	reject   bool
}

func (g *gdmc) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /buildarea", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(protocol.BuildArea{XFrom: 13, YFrom: 0, ZFrom: 23, XTo: 10, YTo: 255, ZTo: 25})
	})
	mux.HandleFunc("GET /heightmap", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "MOTION_BLOCKING_NO_LEAVES" {
			http.Error(w, "bad type", http.StatusBadRequest)
			return
		}
		grid := [][]int{{65, 65, 65}, {65, 66, 65}, {65, 65, 65}, {65, 65, 70}}
		_ = json.NewEncoder(w).Encode(grid)
	})
	mux.HandleFunc("GET /blocks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]protocol.Block{
			{X: 10, Y: 64, Z: 23, ID: "minecraft:grass_block"},
			{X: 11, Y: 65, Z: 24, ID: "minecraft:stone"},
			{X: 11, Y: 64, Z: 24, ID: "minecraft:dirt"},
		})
	})
	mux.HandleFunc("PUT /blocks", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.failPuts > 0 {
			g.failPuts--
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var blocks []protocol.Block
		if err := json.NewDecoder(r.Body).Decode(&blocks); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.put = append(g.put, blocks)
		res := make([]protocol.BlockResult, len(blocks))
		for i := range res {
			res[i].Status = 1
		}
		if g.reject {
			res[0] = protocol.BlockResult{Status: 0, Message: "unknown block"}
		}
		_ = json.NewEncoder(w).Encode(res)
	})
	return mux
}

func TestHTTPClientReads(t *testing.T) {
	srv := httptest.NewServer((&gdmc{}).handler())
	defer srv.Close()
	c := worldio.NewHTTPClient(srv.URL + "/")
	c.Materials = true
	ctx := context.Background()

	area, err := c.BuildArea(ctx)
	require.NoError(t, err)
	assert.Equal(t, geom.V(10, 0, 23), area.Origin)
	assert.Equal(t, geom.V(4, 256, 3), area.Size)

	hm, err := c.HeightMap(ctx, area)
	require.NoError(t, err)
	h, ok := hm.At(11, 24)
	require.True(t, ok)
	assert.Equal(t, 65, h)
	h, _ = hm.At(13, 25)
	assert.Equal(t, 69, h)
	assert.Equal(t, "minecraft:grass_block", hm.Material(10, 23))
	assert.Equal(t, "minecraft:stone", hm.Material(11, 24))
	assert.Equal(t, "", hm.Material(12, 23))
}

func TestHTTPClientSubmit(t *testing.T) {
	g := &gdmc{failPuts: 1}
	srv := httptest.NewServer(g.handler())
	defer srv.Close()
	c := worldio.NewHTTPClient(srv.URL)
	edits := []templates.Edit{
		{Pos: geom.V(1, 2, 3), Block: templates.ParseBlock("minecraft:oak_stairs[facing=east,half=top]"), Span: 2},
	}

	err := c.SubmitEdits(context.Background(), edits)
	require.Error(t, err)
	assert.True(t, worldio.IsTransient(err), "5xx should be transient: %v", err)

	require.NoError(t, c.SubmitEdits(context.Background(), edits))
	require.Len(t, g.put, 1)
	assert.Equal(t, []protocol.Block{
		{X: 1, Y: 2, Z: 3, ID: "minecraft:oak_stairs", State: map[string]string{"facing": "east", "half": "top"}},
		{X: 2, Y: 2, Z: 3, ID: "minecraft:oak_stairs", State: map[string]string{"facing": "east", "half": "top"}},
	}, g.put[0])

	g.reject = true
	err = c.SubmitEdits(context.Background(), edits)
	assert.True(t, worldio.IsFatal(err), "per-block failure should be fatal: %v", err)
	assert.Contains(t, err.Error(), "unknown block")
}

func TestHTTPClientBadRequestIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no build area set", http.StatusNotFound)
	}))
	defer srv.Close()
	_, err := worldio.NewHTTPClient(srv.URL).BuildArea(context.Background())
	var fe *worldio.FatalError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Equal(t, "E_FATAL", fe.Code())
}

func TestSnapshotReaderRetries(t *testing.T) {
	area := worldtest.Area(32)
	w := worldtest.New(area, worldtest.Flat(area, 64))
	w.FailReads(2, nil)
	r := worldio.NewSnapshotReader(w, tuning.World{ReadRetries: 3, ReadTimeoutMs: 1000}, nil)
	r.Backoff = time.Millisecond

	got, err := r.BuildArea(context.Background())
	require.NoError(t, err)
	assert.Equal(t, area, got)
	hm, err := r.HeightMap(context.Background(), got)
	require.NoError(t, err)
	assert.Equal(t, area.Rect(), hm.Rect())
}

func TestSnapshotReaderGivesUp(t *testing.T) {
	area := worldtest.Area(32)
	w := worldtest.New(area, worldtest.Flat(area, 64))
	w.FailReads(10, nil)
	r := worldio.NewSnapshotReader(w, tuning.World{ReadRetries: 2}, nil)
	r.Backoff = time.Millisecond

	_, err := r.BuildArea(context.Background())
	var wu *worldio.WorldUnavailableError
	require.True(t, errors.As(err, &wu), "got %v", err)
	assert.Equal(t, 3, wu.Attempts)
	assert.Equal(t, "E_WORLD_UNAVAILABLE", wu.Code())

	// fatal errors are not retried
	w.FailReads(1, &worldio.FatalError{Op: "read", Err: errors.New("forbidden")})
	_, err = r.BuildArea(context.Background())
	require.True(t, errors.As(err, &wu))
	assert.Equal(t, 1, wu.Attempts)
}

func TestWSWriterThroughRelay(t *testing.T) {
	area := worldtest.Area(16)
	w := worldtest.New(area, worldtest.Flat(area, 64))
	srv := httptest.NewServer(ws.NewRelay(w, nil).Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx := context.Background()
	wr, err := worldio.DialWS(ctx, url, "run-1")
	require.NoError(t, err)
	defer wr.Close()

	blk := templates.ParseBlock("minecraft:chest[facing=east]").WithData("{Items:[]}")
	require.NoError(t, wr.SubmitEdits(ctx, []templates.Edit{{Pos: geom.V(1, 65, 1), Block: blk, Span: 3}}))
	got, ok := w.Block(geom.V(3, 65, 1))
	require.True(t, ok)
	assert.Equal(t, blk, got)

	w.FailNext(1, &worldio.TransientError{Op: "submit", Err: errors.New("busy")})
	err = wr.SubmitEdits(ctx, []templates.Edit{{Pos: geom.V(0, 65, 0), Block: blk, Span: 1}})
	assert.True(t, worldio.IsTransient(err), "got %v", err)
	assert.Contains(t, err.Error(), "E_TRANSIENT")

	w.FailNext(1, &worldio.FatalError{Op: "submit", Err: errors.New("nope")})
	err = wr.SubmitEdits(ctx, []templates.Edit{{Pos: geom.V(0, 65, 0), Block: blk, Span: 1}})
	assert.True(t, worldio.IsFatal(err), "got %v", err)

	require.NoError(t, wr.SubmitEdits(ctx, []templates.Edit{{Pos: geom.V(0, 65, 0), Block: blk, Span: 1}}))
	assert.Len(t, w.Commits(), 2)
}

// lossyRelay drops the connection instead of acknowledging the first frame.
type lossyRelay struct {
	mu  sync.Mutex
	ids []string
}

func (l *lossyRelay) handler() http.Handler {
	up := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg protocol.EditsMsg
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			l.mu.Lock()
			l.ids = append(l.ids, msg.BatchID)
			first := len(l.ids) == 1
			l.mu.Unlock()
			if first {
				return
			}
			ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, BatchID: msg.BatchID, Accepted: len(msg.Blocks)}
			if err := conn.WriteJSON(ack); err != nil {
				return
			}
		}
	})
}

func (l *lossyRelay) seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...)
}

func TestWSWriterKeepsBatchIDAcrossRetries(t *testing.T) {
	lr := &lossyRelay{}
	srv := httptest.NewServer(lr.handler())
	defer srv.Close()

	ctx := context.Background()
	wr, err := worldio.DialWS(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "run-1")
	require.NoError(t, err)
	defer wr.Close()

	edits := []templates.Edit{{Pos: geom.V(0, 65, 0), Block: templates.Air, Span: 2}}
	bctx := worldio.WithBatch(ctx, 7)
	err = wr.SubmitEdits(bctx, edits)
	require.True(t, worldio.IsTransient(err), "got %v", err)
	require.NoError(t, wr.SubmitEdits(bctx, edits))

	require.NoError(t, wr.SubmitEdits(ctx, edits))
	require.NoError(t, wr.SubmitEdits(ctx, edits))
	assert.Equal(t, []string{"run-1-b7", "run-1-b7", "run-1-u1", "run-1-u2"}, lr.seen())
}

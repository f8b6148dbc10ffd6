package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zyedidia/generic/cache"

	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/worldio"
)

// recentBatches bounds how many applied batch ids the relay remembers.
const recentBatches = 4096

// Relay accepts EDITS frames over a websocket, applies each batch to a
// world Writer, and answers with an ACK frame carrying the outcome. A batch
// id that was already applied, on any connection, is acknowledged again
// without touching the world.
type Relay struct {
	world worldio.Writer
	log   *log.Logger

	upgrader websocket.Upgrader

	mu         sync.Mutex
	applied    *cache.Cache[string, int] // batch id -> accepted blocks
	duplicates atomic.Int64
}

func NewRelay(w worldio.Writer, logger *log.Logger) *Relay {
	return &Relay{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		applied: cache.New[string, int](recentBatches),
	}
}

// Duplicates counts replayed batches acknowledged without being applied.
func (s *Relay) Duplicates() int64 { return s.duplicates.Load() }

func (s *Relay) lookup(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied.Get(id)
}

func (s *Relay) remember(id string, accepted int) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.applied.Put(id, accepted)
	s.mu.Unlock()
}

func (s *Relay) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeEdits {
				continue
			}
			var edits protocol.EditsMsg
			if err := json.Unmarshal(msg, &edits); err != nil {
				continue
			}
			if edits.ProtocolVersion != protocol.Version {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
				return
			}
			ack := s.apply(ctx, edits)
			if err := writeJSON(conn, ack); err != nil {
				return
			}
		}
	}
}

func (s *Relay) apply(ctx context.Context, m protocol.EditsMsg) protocol.AckMsg {
	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, BatchID: m.BatchID}
	if n, ok := s.lookup(m.BatchID); ok {
		s.duplicates.Add(1)
		if s.log != nil {
			s.log.Printf("relay: batch %s already applied, acknowledging replay", m.BatchID)
		}
		ack.Accepted = n
		return ack
	}
	if err := s.world.SubmitEdits(ctx, worldio.FromBlocks(m.Blocks)); err != nil {
		ack.Code = protocol.ErrInternal
		var coded protocol.Coded
		if errors.As(err, &coded) {
			ack.Code = coded.Code()
		}
		ack.Message = err.Error()
		ack.Retryable = !worldio.IsFatal(err)
		if s.log != nil {
			s.log.Printf("relay: batch %s (%d blocks) failed: %v", m.BatchID, len(m.Blocks), err)
		}
		return ack
	}
	ack.Accepted = len(m.Blocks)
	s.remember(m.BatchID, ack.Accepted)
	return ack
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

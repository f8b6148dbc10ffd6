package worldio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"towerkeep.ai/internal/protocol"
	"towerkeep.ai/internal/sim/templates"
)

const wsDefaultTimeout = 30 * time.Second

// WSWriter streams edit batches to a relay over one websocket. Each EDITS
// frame is answered by an ACK frame; batches are sent one at a time. A
// broken connection is redialed on the next submit.
//
// A submit tagged with WithBatch keeps the batch id <run>-b<seq> across
// retries, so the relay can acknowledge a replay without applying it twice.
// Untagged submits get a fresh <run>-u<n> id each time.
type WSWriter struct {
	URL   string
	RunID string

	mu   sync.Mutex
	conn *websocket.Conn
	seq  int
}

// DialWS connects eagerly so a bad URL fails before any planning work.
func DialWS(ctx context.Context, url, runID string) (*WSWriter, error) {
	w := &WSWriter{URL: url, RunID: runID}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.dial(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WSWriter) dial(ctx context.Context) error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.DialContext(ctx, w.URL, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return &FatalError{Op: "ws dial", Status: resp.StatusCode, Err: err}
		}
		return &TransientError{Op: "ws dial", Err: err}
	}
	w.conn = conn
	return nil
}

func (w *WSWriter) SubmitEdits(ctx context.Context, edits []templates.Edit) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		if err := w.dial(ctx); err != nil {
			return err
		}
	}
	seq, tagged := BatchFrom(ctx)
	id := fmt.Sprintf("%s-b%d", w.RunID, seq)
	if !tagged {
		w.seq++
		seq = w.seq
		id = fmt.Sprintf("%s-u%d", w.RunID, seq)
	}
	msg := protocol.EditsMsg{
		Type:            protocol.TypeEdits,
		ProtocolVersion: protocol.Version,
		RunID:           w.RunID,
		BatchID:         id,
		Seq:             seq,
		Blocks:          ToBlocks(edits),
	}
	op := "ws " + msg.BatchID

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(wsDefaultTimeout)
	}
	conn := w.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
		_ = conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(msg); err != nil {
		return w.broken(ctx, op, err)
	}
	_ = conn.SetReadDeadline(deadline)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return w.broken(ctx, op, err)
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil || base.Type != protocol.TypeAck {
			continue
		}
		var ack protocol.AckMsg
		if err := json.Unmarshal(raw, &ack); err != nil {
			return &FatalError{Op: op, Err: err}
		}
		if ack.BatchID != msg.BatchID {
			continue
		}
		return ackError(op, ack, len(msg.Blocks))
	}
}

// broken drops the connection so the next submit redials.
func (w *WSWriter) broken(ctx context.Context, op string, err error) error {
	_ = w.conn.Close()
	w.conn = nil
	if ctx.Err() != nil {
		return &TransientError{Op: op, Err: errors.Join(ctx.Err(), err)}
	}
	return &TransientError{Op: op, Err: err}
}

func ackError(op string, ack protocol.AckMsg, sent int) error {
	if ack.Code == "" {
		if ack.Accepted != sent {
			return &TransientError{Op: op, Err: fmt.Errorf("relay accepted %d of %d blocks", ack.Accepted, sent)}
		}
		return nil
	}
	err := fmt.Errorf("%s: %s", ack.Code, ack.Message)
	if ack.Retryable {
		return &TransientError{Op: op, Err: err}
	}
	return &FatalError{Op: op, Err: err}
}

func (w *WSWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}

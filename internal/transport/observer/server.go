package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"towerkeep.ai/internal/emit"
	"towerkeep.ai/internal/observerproto"
	"towerkeep.ai/internal/protocol"
)

// Server streams emission progress of the current run to watchers. It is an
// emit.Journal; slow watchers lose frames instead of stalling emission.
type Server struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu        sync.Mutex
	run       *observerproto.RunInfo
	elements  []observerproto.ElementInfo
	committed int
	batches   int
	sessions  map[string]*session
	dropped   atomic.Uint64
}

type session struct {
	out  chan []byte
	skip int
}

var _ emit.Journal = (*Server)(nil)

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log:      logger,
		sessions: map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Begin resets progress for a new run.
func (s *Server) Begin(run observerproto.RunInfo, elements []observerproto.ElementInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = &run
	s.elements = elements
	s.committed, s.batches = 0, 0
}

func (s *Server) BatchCommitted(_ context.Context, c emit.Committed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed += c.Batch.Cells
	s.batches++
	msg := observerproto.ProgressMsg{
		Type:            observerproto.TypeProgress,
		ProtocolVersion: observerproto.Version,
		Seq:             c.Batch.Seq,
		Cells:           c.Batch.Cells,
		Attempts:        c.Attempts,
		Committed:       s.committed,
	}
	first, last := c.Batch.First(), c.Batch.Last()
	msg.First = [3]int{first.X, first.Y, first.Z}
	msg.Last = [3]int{last.X, last.Y, last.Z}
	if s.run != nil {
		msg.RunID = s.run.RunID
		msg.Planned = s.run.Planned
	}
	b, _ := json.Marshal(msg)
	for _, sess := range s.sessions {
		if sess.skip > 1 && s.batches%sess.skip != 0 {
			continue
		}
		s.send(sess, b)
	}
	return nil
}

// Finish broadcasts the final report.
func (s *Server) Finish(rep protocol.RunReport) {
	b, _ := json.Marshal(observerproto.DoneMsg{Type: observerproto.TypeDone, ProtocolVersion: observerproto.Version, Report: rep})
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		s.send(sess, b)
	}
}

// Dropped counts frames discarded for slow watchers.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) send(sess *session, b []byte) {
	select {
	case sess.out <- b:
	default:
		s.dropped.Add(1)
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		s.mu.Lock()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Run:             s.run,
			Committed:       s.committed,
			Batches:         s.batches,
			Elements:        s.elements,
		}
		b, _ := json.Marshal(resp)
		s.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write(b)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		sess := &session{out: make(chan []byte, 256), skip: sub.SkipBatches}
		s.mu.Lock()
		s.sessions[sid] = sess
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sid)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: only detects the client going away.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Sessions is the number of connected watchers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

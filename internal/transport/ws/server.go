package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"proxiverse.dev/internal/protocol"
	"proxiverse.dev/internal/sim/world"
)

const (
	writeTimeout = 5 * time.Second
	outQueueSize = 32
)

// Server upgrades HTTP requests to WebSocket sessions and bridges them to
// the world actor. A session only ever enqueues; all world mutation happens
// inside the world loop.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.serve(conn)
	}
}

func (s *Server) serve(conn *websocket.Conn) {
	session := uuid.NewString()

	out := make(chan []byte, outQueueSize)
	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{Out: out, Resp: respCh}
	resp := <-respCh
	if resp.Err != "" {
		_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Message: resp.Err})
		s.log.Printf("session %s rejected: %s", session, resp.Err)
		return
	}
	agentID := resp.AgentID

	// Leaving must happen exactly once, whatever path tears the session
	// down, and must be the final world access for this agent id.
	var leaveOnce sync.Once
	leave := func() {
		leaveOnce.Do(func() { s.world.Leave() <- agentID })
	}
	defer leave()

	if err := writeJSON(conn, protocol.ConnectionEstablishedMsg{
		Type:    protocol.TypeConnectionEstablished,
		AgentID: string(agentID),
		Message: "Connected to Proxiverse server",
	}); err != nil {
		return
	}
	s.log.Printf("session %s bound to agent %s", session, agentID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Writer goroutine: the only writer after the handshake.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-out:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader loop: decode, validate, enqueue. Per-client errors are reported
	// back on the same out channel and never escape the session.
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			cancel()
			return
		}
		var raw any
		if err := json.Unmarshal(msg, &raw); err != nil {
			s.sendError(out, "Invalid JSON format")
			continue
		}
		if err := protocol.ValidateCommand(raw); err != nil {
			if protocol.IsUnknownAction(err) {
				action := ""
				if m, ok := raw.(map[string]any); ok {
					action, _ = m["action"].(string)
				}
				s.sendError(out, fmt.Sprintf("Unknown action: %s", action))
			} else {
				s.sendError(out, "Invalid command")
			}
			continue
		}
		var cmd protocol.CommandMsg
		if err := json.Unmarshal(msg, &cmd); err != nil {
			s.sendError(out, "Invalid JSON format")
			continue
		}
		s.world.Inbox() <- world.ActionEnvelope{AgentID: agentID, Cmd: cmd}
	}
}

func (s *Server) sendError(out chan []byte, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Message: message})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

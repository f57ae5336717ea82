package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/lotas/tabtree/internal/applog"
	"nhooyr.io/websocket"
)

var (
	// ErrNotConnected is returned when no extension is connected.
	ErrNotConnected = errors.New("extension not connected")
	// ErrRemote is returned when the extension answers a command with ok=false.
	ErrRemote = errors.New("extension error")
)

// IncomingMsg is a message from the extension. Requests carry Type;
// command responses carry the command's ID and OK.
type IncomingMsg struct {
	Type  string `json:"type,omitempty"`
	ID    string `json:"id,omitempty"`
	TabID int    `json:"tabId,omitempty"`
	// restore-tabs payload
	Data json.RawMessage `json:"data,omitempty"`
	// Command response fields
	OK    *bool           `json:"ok,omitempty"`
	Error string          `json:"error,omitempty"`
	Tab   json.RawMessage `json:"tab,omitempty"`
	Tabs  json.RawMessage `json:"tabs,omitempty"`
}

// OutgoingMsg is a command, push or response sent to the extension.
type OutgoingMsg struct {
	ID       string          `json:"id"`
	Action   string          `json:"action"`
	TabID    int             `json:"tabId,omitempty"`
	TabIDs   []int           `json:"tabIds,omitempty"`
	WindowID int             `json:"windowId,omitempty"`
	Index    *int            `json:"index,omitempty"`
	Props    json.RawMessage `json:"props,omitempty"`
	// download
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Content  string `json:"content,omitempty"`
	// update-progress
	Loaded *int `json:"loaded,omitempty"`
	Total  *int `json:"total,omitempty"`
	// response to an extension request
	Result json.RawMessage `json:"result,omitempty"`
}

// Registrar mounts extra HTTP routes next to the WebSocket endpoint.
type Registrar interface {
	RegisterHTTP(r chi.Router)
}

// Server manages the WebSocket connection to the extension.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	pending map[string]chan IncomingMsg
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:    port,
		msgs:    make(chan IncomingMsg, 64),
		pending: make(map[string]chan IncomingMsg),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of requests from the extension.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send writes a message to the connected extension without waiting for an
// answer.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Call sends a command and waits for the response carrying the same id.
// A response with ok=false is returned as an error wrapping ErrRemote.
func (s *Server) Call(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	ch := make(chan IncomingMsg, 1)
	s.mu.Lock()
	s.pending[msg.ID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	}()

	if err := s.Send(msg); err != nil {
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, err)
	}

	select {
	case resp := <-ch:
		if resp.OK != nil && !*resp.OK {
			return resp, fmt.Errorf("%s: %w: %s", msg.Action, ErrRemote, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}

// Reply answers an extension request.
func (s *Server) Reply(id string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return s.Send(OutgoingMsg{ID: id, Action: "response", Result: data})
}

// deliver routes a command response to its waiting caller. It reports
// false when nobody is waiting for msg.ID.
func (s *Server) deliver(msg IncomingMsg) bool {
	if msg.ID == "" || msg.OK == nil {
		return false
	}
	s.mu.Lock()
	ch, ok := s.pending[msg.ID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // 16 MB; restore payloads with many tabs can be large

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			if s.deliver(msg) {
				continue
			}
			applog.Info("ws.recv", "type", msg.Type, "id", msg.ID)
			select {
			case s.msgs <- msg:
			default:
				applog.Warn("ws.dropped", "type", msg.Type)
			}
		}
	})
}

// Router returns the HTTP routes: /ws for the extension plus whatever the
// registrars mount.
func (s *Server) Router(registrars ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/ws", s.Handler())
	for _, reg := range registrars {
		reg.RegisterHTTP(r)
	}
	return r
}

// ListenAndServe serves handler on 127.0.0.1 at the configured port until
// ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, handler http.Handler) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

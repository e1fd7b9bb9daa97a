package channel

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/stellarlinkco/huarazbot/internal/agent"
	"github.com/stellarlinkco/huarazbot/internal/bus"
	"github.com/stellarlinkco/huarazbot/internal/config"
	"github.com/stellarlinkco/huarazbot/internal/memory"
	"github.com/stellarlinkco/huarazbot/internal/session"
)

//go:embed static
var staticFiles embed.FS

const webUIChannelName = "webui"

const maxChatBody = 64 << 10

// Frame types of the websocket protocol.
const (
	frameSystem = "system"
	frameBot    = "bot"
	frameError  = "error"
)

// Sessions is what the web UI needs from the session layer.
// *session.Manager implements it.
type Sessions interface {
	Process(ctx context.Context, id, text string) agent.Result
	History(id string) []session.Entry
	Summary(id string) memory.Summary
	Clear(id string) bool
	Stats() session.Stats
}

type wsFrame struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	writeMu   sync.Mutex
}

func (c *wsClient) write(ctx context.Context, f wsFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, c.conn, f)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
}

// WebUIChannel serves the browser chat page, the JSON API and the websocket
// endpoint. Unlike telegram it answers synchronously through Sessions.
type WebUIChannel struct {
	BaseChannel
	addr     string
	sessions Sessions
	server   *http.Server
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]map[*wsClient]struct{}
	active  atomic.Int64
}

func NewWebUIChannel(cfg config.WebUIConfig, gwCfg config.GatewayConfig, b *bus.MessageBus, sessions Sessions) (*WebUIChannel, error) {
	if sessions == nil {
		return nil, errors.New("webui requires a session manager")
	}
	port := gwCfg.Port
	if port == 0 {
		port = config.DefaultPort
	}
	return &WebUIChannel{
		BaseChannel: NewBaseChannel(webUIChannelName, b, cfg.AllowFrom),
		addr:        net.JoinHostPort(gwCfg.Host, strconv.Itoa(port)),
		sessions:    sessions,
		now:         time.Now,
		clients:     make(map[string]map[*wsClient]struct{}),
	}, nil
}

// Handler returns the HTTP routes of the web UI.
func (w *WebUIChannel) Handler() (http.Handler, error) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("embed static fs: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("GET /health", w.handleHealth)
	mux.HandleFunc("GET /stats", w.handleStats)
	mux.HandleFunc("POST /chat", w.handleChat)
	mux.HandleFunc("GET /history/{session_id}", w.handleHistory)
	mux.HandleFunc("DELETE /history/{session_id}", w.handleClearHistory)
	mux.HandleFunc("GET /ws", w.handleWS)
	mux.HandleFunc("GET /ws/{session_id}", w.handleWS)

	return otelhttp.NewHandler(mux, webUIChannelName), nil
}

func (w *WebUIChannel) Start(ctx context.Context) error {
	handler, err := w.Handler()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", w.addr, err)
	}
	w.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[webui] listening on %s", ln.Addr())
		if err := w.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[webui] server error: %v", err)
		}
	}()
	return nil
}

func (w *WebUIChannel) handleHealth(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, map[string]any{
		"status":              "healthy",
		"timestamp":           w.now(),
		"chatbot_initialized": w.sessions != nil,
	})
}

func (w *WebUIChannel) handleStats(wr http.ResponseWriter, r *http.Request) {
	st := w.sessions.Stats()
	writeJSON(wr, http.StatusOK, map[string]any{
		"total_conversations": st.Conversations,
		"total_messages":      st.Messages,
		"active_connections":  w.ActiveConnections(),
		"timestamp":           w.now(),
	})
}

func (w *WebUIChannel) handleChat(wr http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(wr, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(wr, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(wr, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = session.DefaultID
	}
	if !w.IsAllowed(req.SessionID) {
		writeError(wr, http.StatusForbidden, "session not allowed")
		return
	}

	res := w.sessions.Process(r.Context(), req.SessionID, req.Message)
	if !res.Success {
		log.Printf("[webui] chat %s failed: %s", req.SessionID, res.Error)
	}
	writeJSON(wr, http.StatusOK, chatResponse{
		Response:  res.Text,
		Timestamp: w.now(),
		SessionID: req.SessionID,
	})
}

func (w *WebUIChannel) handleHistory(wr http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	body := map[string]any{
		"session_id": id,
		"history":    w.sessions.History(id),
	}
	if v := r.URL.Query().Get("summary"); v == "1" || v == "true" {
		body["summary"] = w.sessions.Summary(id)
	}
	writeJSON(wr, http.StatusOK, body)
}

func (w *WebUIChannel) handleClearHistory(wr http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	w.sessions.Clear(id)
	writeJSON(wr, http.StatusOK, map[string]any{
		"message":    "Historial limpiado",
		"session_id": id,
	})
}

func (w *WebUIChannel) handleWS(wr http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if !w.IsAllowed(sessionID) {
		http.Error(wr, "session not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(wr, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[webui] websocket accept error: %v", err)
		return
	}

	client := &wsClient{conn: conn, sessionID: sessionID}
	w.addClient(client)
	log.Printf("[webui] client connected: %s", sessionID)

	defer func() {
		w.removeClient(client)
		conn.CloseNow()
		log.Printf("[webui] client disconnected: %s", sessionID)
	}()

	ctx := r.Context()
	if err := client.write(ctx, wsFrame{Type: frameSystem, Content: WelcomeText, SessionID: sessionID, Timestamp: w.now()}); err != nil {
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var in struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			if err := client.write(ctx, wsFrame{Type: frameError, Content: "Error al procesar tu mensaje: " + err.Error(), Timestamp: w.now()}); err != nil {
				return
			}
			continue
		}
		text := strings.TrimSpace(in.Message)
		if text == "" {
			continue
		}

		log.Printf("[webui] message from %s: %s", sessionID, truncate(text, 50))
		res := w.sessions.Process(ctx, sessionID, text)
		if !res.Success {
			log.Printf("[webui] query of %s failed: %s", sessionID, res.Error)
		}
		if err := client.write(ctx, wsFrame{Type: frameBot, Content: res.Text, Timestamp: w.now()}); err != nil {
			return
		}
	}
}

func (w *WebUIChannel) addClient(c *wsClient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set, ok := w.clients[c.sessionID]
	if !ok {
		set = make(map[*wsClient]struct{})
		w.clients[c.sessionID] = set
	}
	set[c] = struct{}{}
	w.active.Add(1)
}

func (w *WebUIChannel) removeClient(c *wsClient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := w.clients[c.sessionID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(w.clients, c.sessionID)
	}
	w.active.Add(-1)
}

func (w *WebUIChannel) sessionClients(id string) []*wsClient {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*wsClient, 0, len(w.clients[id]))
	for c := range w.clients[id] {
		out = append(out, c)
	}
	return out
}

// ActiveConnections is the number of open websocket connections.
func (w *WebUIChannel) ActiveConnections() int { return int(w.active.Load()) }

// Send pushes msg to every websocket open on session msg.ChatID.
func (w *WebUIChannel) Send(msg bus.OutboundMessage) error {
	clients := w.sessionClients(msg.ChatID)
	if len(clients) == 0 {
		return fmt.Errorf("no websocket open for session %q", msg.ChatID)
	}
	var errs []error
	for _, c := range clients {
		if err := c.write(context.Background(), wsFrame{Type: frameBot, Content: msg.Content, Timestamp: w.now()}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *WebUIChannel) Stop() error {
	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.server.Shutdown(ctx); err != nil {
			log.Printf("[webui] shutdown error: %v", err)
		}
	}
	w.mu.Lock()
	for _, set := range w.clients {
		for c := range set {
			c.conn.CloseNow()
		}
	}
	w.mu.Unlock()
	log.Printf("[webui] stopped")
	return nil
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
	wr.Header().Set("Content-Type", "application/json; charset=utf-8")
	wr.WriteHeader(status)
	if err := json.NewEncoder(wr).Encode(v); err != nil {
		log.Printf("[webui] write response: %v", err)
	}
}

func writeError(wr http.ResponseWriter, status int, detail string) {
	writeJSON(wr, status, map[string]string{"detail": detail})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

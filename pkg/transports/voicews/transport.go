package voicews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/harunnryd/atena/pkg/errorsx"
	"github.com/harunnryd/atena/pkg/events"
	"github.com/harunnryd/atena/pkg/transports"
)

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	PublicURL      string   `mapstructure:"public_url"`
	ChatsPath      string   `mapstructure:"chats_path"`
	StatusPath     string   `mapstructure:"status_path"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.ChatsPath == "" {
		c.ChatsPath = "/chats"
	}
	if c.StatusPath == "" {
		c.StatusPath = "/status"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// Transport serves the voice runtime's websocket protocol: POST /chats to
// bootstrap a session, then a websocket per call carrying typed messages in
// both directions.
type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	recvCh   chan transports.Envelope

	mu       sync.Mutex
	sessions map[string]*session

	draining atomic.Bool
}

type session struct {
	callID string
	conn   *websocket.Conn
	out    chan OutputMessage
	once   sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.out)
		_ = s.conn.Close()
	})
}

func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		recvCh:   make(chan transports.Envelope, 512),
		sessions: make(map[string]*session),
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "voicews" }

func (t *Transport) Recv() <-chan transports.Envelope { return t.recvCh }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"chats_url": t.publicURL(t.cfg.ChatsPath),
		"ws_url":    t.websocketURL(""),
	}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           t.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("voicews_server_error", "error", err.Error())
		}
	}()
	return nil
}

// Handler exposes the HTTP surface so tests can drive it with httptest.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.ChatsPath, t.handleChats)
	mux.HandleFunc(t.cfg.StatusPath, t.handleStatus)
	mux.HandleFunc(t.cfg.WebsocketPath+"/", t.handleWebsocket)
	return mux
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	t.mu.Lock()
	for _, sess := range t.sessions {
		sess.close()
	}
	t.sessions = make(map[string]*session)
	t.mu.Unlock()
	close(t.recvCh)
	return nil
}

// handleChats bootstraps a session and hands the runtime its websocket URL.
func (t *Transport) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	callID := uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ChatResponse{
		ID:           callID,
		WebsocketURL: t.websocketURL(callID),
	})
}

func (t *Transport) handleStatus(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	active := len(t.sessions)
	t.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(StatusResponse{Status: "ok", ActiveCalls: active})
}

func (t *Transport) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	callID := strings.TrimPrefix(r.URL.Path, t.cfg.WebsocketPath+"/")
	if callID == "" || strings.Contains(callID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sess := &session{
		callID: callID,
		conn:   conn,
		out:    make(chan OutputMessage, 128),
	}
	t.mu.Lock()
	old := t.sessions[callID]
	t.sessions[callID] = sess
	t.mu.Unlock()
	if old != nil {
		old.close()
	}

	go sess.writeLoop()
	t.deliver(callID, events.NewCallStarted(callID, r.RemoteAddr))
	t.readLoop(sess)
}

func (s *session) writeLoop() {
	for msg := range s.out {
		if err := s.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (t *Transport) readLoop(sess *session) {
	defer func() {
		replaced := !t.detach(sess)
		sess.close()
		// A reconnect replaces the session entry; only the live one may
		// signal the end of the call.
		if !replaced {
			t.deliver(sess.callID, events.NewCallEnded(sess.callID, "websocket_closed"))
		}
	}()
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg InputMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("voicews_bad_message", "call_id", sess.callID, "error", err.Error())
			continue
		}
		ev, ok := mapInput(msg)
		if !ok {
			continue
		}
		t.deliver(sess.callID, ev)
	}
}

func mapInput(msg InputMessage) (events.Event, bool) {
	switch msg.Type {
	case inputMessage:
		if strings.TrimSpace(msg.Content) == "" {
			return nil, false
		}
		return events.NewUserTranscription(msg.Content), true
	case inputUserState:
		switch msg.State {
		case stateStartedSpeaking:
			return events.NewUserStartedSpeaking(), true
		case stateStoppedSpeaking:
			return events.NewUserStoppedSpeaking(), true
		}
		return nil, false
	case inputAgentState:
		switch msg.State {
		case stateStartedSpeaking:
			return events.NewAgentStartedSpeaking(), true
		case stateStoppedSpeaking:
			return events.NewAgentStoppedSpeaking(), true
		}
		return nil, false
	case inputAgentSpeech:
		return events.NewAgentSpeechSent(msg.Content), true
	case inputDTMF:
		return events.NewDTMFInput(msg.Button), true
	case inputCustom:
		return nil, false
	}
	return nil, false
}

func (t *Transport) Send(callID string, ev events.Event) error {
	msg, ok := mapOutput(ev)
	if !ok {
		return nil
	}
	t.mu.Lock()
	sess := t.sessions[callID]
	t.mu.Unlock()
	if sess == nil {
		return errorsx.Wrap(fmt.Errorf("no session for call %s", callID), errorsx.ReasonTransportSend)
	}
	select {
	case sess.out <- msg:
		return nil
	default:
		return errorsx.Wrap(fmt.Errorf("send buffer full for call %s", callID), errorsx.ReasonTransportSend)
	}
}

func mapOutput(ev events.Event) (OutputMessage, bool) {
	switch e := ev.(type) {
	case events.AgentResponse:
		return OutputMessage{Type: outputMessage, Content: e.Content}, true
	case events.ToolCall:
		return OutputMessage{Type: outputToolCall, ToolName: e.Name, ToolArgs: e.Arguments}, true
	case events.ToolResult:
		return OutputMessage{Type: outputToolCall, ToolName: e.ToolName, ToolArgs: e.ToolArgs, Result: e.Result, Error: e.Error}, true
	case events.EndCall:
		return OutputMessage{Type: outputEndCall, GoodbyeMessage: e.GoodbyeMessage}, true
	case events.TransferCall:
		return OutputMessage{Type: outputTransfer, TargetNumber: e.TargetNumber}, true
	case events.EscalationVerdict:
		reasons := make([]any, 0, len(e.Reasons))
		for _, r := range e.Reasons {
			reasons = append(reasons, r)
		}
		return OutputMessage{
			Type:  outputLogEvent,
			Event: "escalation_verdict",
			Metadata: map[string]any{
				"risk":    string(e.Risk),
				"reasons": reasons,
			},
		}, true
	}
	return OutputMessage{}, false
}

func (t *Transport) deliver(callID string, ev events.Event) {
	if t.draining.Load() {
		return
	}
	select {
	case t.recvCh <- transports.Envelope{CallID: callID, Event: ev}:
	default:
	}
}

// detach removes the session entry if it is still the live one for the call.
func (t *Transport) detach(sess *session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur := t.sessions[sess.callID]; cur == sess {
		delete(t.sessions, sess.callID)
		return true
	}
	return false
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range t.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

func (t *Transport) publicURL(path string) string {
	if t.cfg.PublicURL != "" {
		return "https://" + strings.TrimPrefix(strings.TrimPrefix(t.cfg.PublicURL, "https://"), "http://") + path
	}
	addr := t.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

func (t *Transport) websocketURL(callID string) string {
	base := t.publicURL(t.cfg.WebsocketPath)
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	if callID == "" {
		return base
	}
	return base + "/" + callID
}
